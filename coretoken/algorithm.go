package coretoken

import (
	"fmt"
	"io"
	"sort"
)

// Algorithm names a signature scheme as written in the token header
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
	RS256 Algorithm = "RS256"
	RS384 Algorithm = "RS384"
	RS512 Algorithm = "RS512"
	ES256 Algorithm = "ES256"
	ES384 Algorithm = "ES384"
	ES512 Algorithm = "ES512"
	EdDSA Algorithm = "EdDSA"
	// None produces unsigned tokens. Verify accepts it only when listed explicitly.
	None Algorithm = "none"
)

// signer computes and checks signatures for one algorithm. Implementations
// are stateless.
type signer interface {
	sign(input []byte, key any, rand io.Reader) ([]byte, error)
	verify(input, sig []byte, key any) error
}

var signers = map[Algorithm]signer{
	HS256: hmacHS256,
	HS384: hmacHS384,
	HS512: hmacHS512,
	RS256: rsaRS256,
	RS384: rsaRS384,
	RS512: rsaRS512,
	ES256: ecdsaES256,
	ES384: ecdsaES384,
	ES512: ecdsaES512,
	EdDSA: ed25519Method{},
	None:  noneMethod{},
}

func (a Algorithm) String() string { return string(a) }

// Supported reports whether the engine implements a
func (a Algorithm) Supported() bool {
	_, ok := signers[a]
	return ok
}

// Symmetric reports whether a uses a shared secret
func (a Algorithm) Symmetric() bool {
	_, ok := signers[a].(*hmacMethod)
	return ok
}

// Algorithms lists every supported algorithm in sorted order
func Algorithms() []Algorithm {
	algs := make([]Algorithm, 0, len(signers))
	for alg := range signers {
		algs = append(algs, alg)
	}
	sort.Slice(algs, func(i, j int) bool { return algs[i] < algs[j] })
	return algs
}

// ParseAlgorithm maps a name to a supported Algorithm. Matching is exact.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(name)
	if !alg.Supported() {
		return "", fmt.Errorf("unsupported algorithm %q", name)
	}
	return alg, nil
}

// allowed reports whether alg is supported and listed
func allowed(alg Algorithm, list []Algorithm) bool {
	if !alg.Supported() {
		return false
	}
	for _, a := range list {
		if a == alg {
			return true
		}
	}
	return false
}

func keyError(alg Algorithm, key any) *Error {
	return newError(ErrInvalidKey, "", fmt.Sprintf("key of type %T cannot be used with %s", key, alg), nil)
}
