package coretoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"
)

// Secret is symmetric key material for the HS* algorithms
type Secret []byte

type hmacMethod struct {
	alg     Algorithm
	newHash func() hash.Hash
}

var (
	hmacHS256 = &hmacMethod{HS256, sha256.New}
	hmacHS384 = &hmacMethod{HS384, sha512.New384}
	hmacHS512 = &hmacMethod{HS512, sha512.New}
)

func (m *hmacMethod) secret(key any) ([]byte, error) {
	var b []byte
	switch k := key.(type) {
	case Secret:
		b = k
	case []byte:
		b = k
	case string:
		b = []byte(k)
	default:
		return nil, keyError(m.alg, key)
	}
	if len(b) == 0 {
		return nil, newError(ErrInvalidKey, "", "HMAC secret must not be empty", nil)
	}
	return b, nil
}

func (m *hmacMethod) sign(input []byte, key any, _ io.Reader) ([]byte, error) {
	secret, err := m.secret(key)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(m.newHash, secret)
	mac.Write(input)
	return mac.Sum(nil), nil
}

func (m *hmacMethod) verify(input, sig []byte, key any) error {
	expected, err := m.sign(input, key, nil)
	if err != nil {
		return err
	}
	// constant time
	if !hmac.Equal(sig, expected) {
		return errSignatureMismatch
	}
	return nil
}
