package coretoken

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// ParsePublicKeyPEM parses an RSA, ECDSA or Ed25519 public key.
// Supports PKIX ("PUBLIC KEY") and PKCS#1 ("RSA PUBLIC KEY") blocks.
func ParsePublicKeyPEM(pemBytes []byte) (any, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	// Try PKIX format first (most common)
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		switch k := key.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
			return k, nil
		default:
			return nil, fmt.Errorf("unsupported public key type %T", key)
		}
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("failed to parse public key from PEM")
}

// ParsePrivateKeyPEM parses an RSA, ECDSA or Ed25519 private key in PKCS#8,
// PKCS#1 or SEC 1 form.
func ParsePrivateKeyPEM(pemBytes []byte) (any, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		switch k := key.(type) {
		case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
			return k, nil
		default:
			return nil, fmt.Errorf("unsupported private key type %T", key)
		}
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("failed to parse private key from PEM")
}

// ParseRSAPublicKeyFromPEM parses an RSA public key in PKIX or PKCS#1 form
func ParseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	key, err := ParsePublicKeyPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key is not RSA public key")
	}
	return rsaKey, nil
}

// AlgorithmForKey suggests the default algorithm for a key: HS256 for
// secrets, RS256, ES256/384/512 by curve, EdDSA.
func AlgorithmForKey(key any) (Algorithm, error) {
	switch k := key.(type) {
	case Secret, []byte, string:
		return HS256, nil
	case *rsa.PrivateKey, *rsa.PublicKey:
		return RS256, nil
	case ed25519.PrivateKey, ed25519.PublicKey:
		return EdDSA, nil
	case *ecdsa.PrivateKey:
		if k != nil {
			return ecdsaAlgorithm(&k.PublicKey)
		}
	case *ecdsa.PublicKey:
		return ecdsaAlgorithm(k)
	}
	return "", fmt.Errorf("no algorithm for key type %T", key)
}

func ecdsaAlgorithm(pub *ecdsa.PublicKey) (Algorithm, error) {
	if pub == nil || pub.Curve == nil {
		return "", fmt.Errorf("ECDSA key has no curve")
	}
	bits := pub.Curve.Params().BitSize
	switch bits {
	case 256:
		return ES256, nil
	case 384:
		return ES384, nil
	case 521:
		return ES512, nil
	}
	return "", fmt.Errorf("unsupported ECDSA curve size %d", bits)
}
