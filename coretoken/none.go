package coretoken

import "io"

// noneMethod signs nothing. Issue refuses a non-nil key so that a secret is
// never silently dropped.
type noneMethod struct{}

func (noneMethod) sign(_ []byte, key any, _ io.Reader) ([]byte, error) {
	if key != nil {
		return nil, newError(ErrInvalidKey, "", "none algorithm takes no key", nil)
	}
	return []byte{}, nil
}

func (noneMethod) verify(_, sig []byte, _ any) error {
	if len(sig) != 0 {
		return errSignatureMismatch
	}
	return nil
}
