// Package coretoken issues and verifies compact signed tokens.
//
// A token is three base64url segments joined by '.': the encoded header, the
// encoded claims and the signature over the first two segments. Issue builds
// one, Verify checks it against a caller-supplied key and an explicit list of
// allowed algorithms, and DecodeUnsafe exposes its contents without any
// verification.
//
// The package holds no mutable state. Keys are owned by the caller and are
// only read.
package coretoken
