package coretoken

import (
	"crypto"
	"crypto/ecdsa"
	"io"
	"math/big"
)

// ecdsaMethod produces the fixed-width r||s signature encoding
type ecdsaMethod struct {
	alg       Algorithm
	hash      crypto.Hash
	curveBits int
	keySize   int
}

var (
	ecdsaES256 = &ecdsaMethod{ES256, crypto.SHA256, 256, 32}
	ecdsaES384 = &ecdsaMethod{ES384, crypto.SHA384, 384, 48}
	ecdsaES512 = &ecdsaMethod{ES512, crypto.SHA512, 521, 66}
)

func (m *ecdsaMethod) digest(input []byte) []byte {
	h := m.hash.New()
	h.Write(input)
	return h.Sum(nil)
}

// fits reports whether pub is a complete key on this method's curve
func (m *ecdsaMethod) fits(pub *ecdsa.PublicKey) bool {
	if pub == nil || pub.Curve == nil || pub.X == nil || pub.Y == nil {
		return false
	}
	return pub.Curve.Params().BitSize == m.curveBits
}

func (m *ecdsaMethod) sign(input []byte, key any, rand io.Reader) ([]byte, error) {
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok || priv == nil || priv.D == nil || !m.fits(&priv.PublicKey) {
		return nil, keyError(m.alg, key)
	}
	r, s, err := ecdsa.Sign(rand, priv, m.digest(input))
	if err != nil {
		return nil, newError(ErrInvalidKey, "", "ECDSA signing failed", err)
	}
	out := make([]byte, 2*m.keySize)
	r.FillBytes(out[:m.keySize])
	s.FillBytes(out[m.keySize:])
	return out, nil
}

func (m *ecdsaMethod) verify(input, sig []byte, key any) error {
	var pub *ecdsa.PublicKey
	switch k := key.(type) {
	case *ecdsa.PublicKey:
		pub = k
	case *ecdsa.PrivateKey:
		if k != nil {
			pub = &k.PublicKey
		}
	}
	if !m.fits(pub) {
		return keyError(m.alg, key)
	}
	if len(sig) != 2*m.keySize {
		return errSignatureMismatch
	}
	r := new(big.Int).SetBytes(sig[:m.keySize])
	s := new(big.Int).SetBytes(sig[m.keySize:])
	if !ecdsa.Verify(pub, m.digest(input), r, s) {
		return errSignatureMismatch
	}
	return nil
}
