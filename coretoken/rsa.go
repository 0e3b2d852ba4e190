package coretoken

import (
	"crypto"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"io"
)

type rsaMethod struct {
	alg  Algorithm
	hash crypto.Hash
}

var (
	rsaRS256 = &rsaMethod{RS256, crypto.SHA256}
	rsaRS384 = &rsaMethod{RS384, crypto.SHA384}
	rsaRS512 = &rsaMethod{RS512, crypto.SHA512}
)

func (m *rsaMethod) digest(input []byte) []byte {
	h := m.hash.New()
	h.Write(input)
	return h.Sum(nil)
}

func (m *rsaMethod) sign(input []byte, key any, rand io.Reader) ([]byte, error) {
	priv, ok := key.(*rsa.PrivateKey)
	if !ok || priv == nil {
		return nil, keyError(m.alg, key)
	}
	sig, err := rsa.SignPKCS1v15(rand, priv, m.hash, m.digest(input))
	if err != nil {
		return nil, newError(ErrInvalidKey, "", "RSA signing failed", err)
	}
	return sig, nil
}

func (m *rsaMethod) verify(input, sig []byte, key any) error {
	var pub *rsa.PublicKey
	switch k := key.(type) {
	case *rsa.PublicKey:
		pub = k
	case *rsa.PrivateKey:
		if k != nil {
			pub = &k.PublicKey
		}
	}
	if pub == nil {
		return keyError(m.alg, key)
	}
	if err := rsa.VerifyPKCS1v15(pub, m.hash, m.digest(input), sig); err != nil {
		return errSignatureMismatch
	}
	return nil
}
