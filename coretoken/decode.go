package coretoken

// Decoded is the unverified content of a token
type Decoded struct {
	Header    Header
	Claims    *Claims
	Signature string
}

// DecodeUnsafe splits and decodes a token WITHOUT checking its signature,
// algorithm or time-bound claims. Anyone can forge the returned content: use
// it to inspect a token, never to decide whether to trust it. Call Verify for
// that.
func DecodeUnsafe(token string) (*Decoded, error) {
	parts, err := splitToken(token, DefaultMaxLength)
	if err != nil {
		return nil, err
	}
	header, err := decodeHeader(parts[0])
	if err != nil {
		return nil, err
	}
	claims, err := decodeClaims(parts[1])
	if err != nil {
		return nil, err
	}
	return &Decoded{Header: header, Claims: claims, Signature: parts[2]}, nil
}

// PeekHeader decodes only the header. Like DecodeUnsafe it performs no
// verification.
func PeekHeader(token string) (Header, error) {
	parts, err := splitToken(token, DefaultMaxLength)
	if err != nil {
		return Header{}, err
	}
	return decodeHeader(parts[0])
}
