package coretoken

import (
	"crypto/ed25519"
	"io"
)

type ed25519Method struct{}

func (ed25519Method) sign(input []byte, key any, _ io.Reader) ([]byte, error) {
	priv, ok := key.(ed25519.PrivateKey)
	if !ok || len(priv) != ed25519.PrivateKeySize {
		return nil, keyError(EdDSA, key)
	}
	return ed25519.Sign(priv, input), nil
}

func (ed25519Method) verify(input, sig []byte, key any) error {
	var pub ed25519.PublicKey
	switch k := key.(type) {
	case ed25519.PublicKey:
		pub = k
	case ed25519.PrivateKey:
		if len(k) == ed25519.PrivateKeySize {
			pub = k.Public().(ed25519.PublicKey)
		}
	}
	if len(pub) != ed25519.PublicKeySize {
		return keyError(EdDSA, key)
	}
	if !ed25519.Verify(pub, input, sig) {
		return errSignatureMismatch
	}
	return nil
}
