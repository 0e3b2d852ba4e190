package coretoken

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sampleClaims() *Claims {
	return NewClaims().
		Set("name", String("aryaman")).
		Set("accountNumber", Int(123456787))
}

func TestIssueVerifyExample(t *testing.T) {
	token, err := Issue(sampleClaims(), "secret", HS256)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	claims, err := Verify(token, "secret", []Algorithm{HS256})
	require.NoError(t, err)
	assert.True(t, sampleClaims().Equal(claims))
	assert.Equal(t, []string{"name", "accountNumber"}, claims.Keys())

	n, ok := mustGet(t, claims, "accountNumber").AsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(123456787), n)

	_, err = Verify(token, "wrong", []Algorithm{HS256})
	require.Error(t, err)
	assert.Equal(t, ErrInvalidSignature, CodeOf(err))
}

func TestIssueCoreHeader(t *testing.T) {
	token, err := Issue(sampleClaims(), "secret", HS256)
	require.NoError(t, err)

	headerSeg := token[:strings.Index(token, ".")]
	raw, err := base64.RawURLEncoding.DecodeString(headerSeg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"algorithm":"HS256","type":"core-token"}`, string(raw))
	assert.NotContains(t, token, "=")
}

func TestIssueIsDeterministic(t *testing.T) {
	first, err := Issue(sampleClaims(), "secret", HS512)
	require.NoError(t, err)
	second, err := Issue(sampleClaims(), "secret", HS512)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecodeUnsafeRoundTrip(t *testing.T) {
	payloads := []*Claims{
		NewClaims(),
		sampleClaims(),
		NewClaims().
			Set("nested", Object(NewClaims().Set("list", Array(Int(1), Float(2.25), String("three"), Null())))).
			Set("unicode", String("héllo ✓ <tag> & \"quotes\"")).
			Set("flag", Bool(false)),
	}

	for _, alg := range []Algorithm{HS256, HS384, HS512} {
		for _, p := range payloads {
			token, err := Issue(p, []byte("round-trip-key"), alg)
			require.NoError(t, err)

			decoded, err := DecodeUnsafe(token)
			require.NoError(t, err)
			assert.Equal(t, alg, decoded.Header.Algorithm)
			assert.Equal(t, TypeCore, decoded.Header.Type)
			assert.True(t, p.Equal(decoded.Claims), "alg %s payload %v", alg, p.Keys())

			verified, err := Verify(token, []byte("round-trip-key"), []Algorithm{alg})
			require.NoError(t, err)
			assert.True(t, p.Equal(verified))
		}
	}
}

func TestDecodeUnsafeIgnoresSignature(t *testing.T) {
	token, err := Issue(sampleClaims(), "secret", HS256)
	require.NoError(t, err)

	forged := token[:strings.LastIndex(token, ".")+1] + "AAAA"
	decoded, err := DecodeUnsafe(forged)
	require.NoError(t, err)
	assert.Equal(t, "aryaman", decoded.Claims.GetString("name"))
	assert.Equal(t, "AAAA", decoded.Signature)

	_, err = Verify(forged, "secret", []Algorithm{HS256})
	assert.Equal(t, ErrInvalidSignature, CodeOf(err))
}

func TestIssueDoesNotMutateInput(t *testing.T) {
	in := sampleClaims()
	_, err := Issue(in, "secret", HS256, ExpiresIn(time.Hour), WithIssuedAtNow(), WithTokenID(""))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "accountNumber"}, in.Keys())
}

func TestTamperDetection(t *testing.T) {
	token, err := Issue(sampleClaims(), "secret", HS256, IssuedAt(epoch), ExpiresIn(time.Hour))
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		for _, mask := range []byte{0x01, 0x02, 0x20} {
			b := []byte(token)
			b[i] ^= mask
			_, err := Verify(string(b), "secret", []Algorithm{HS256}, WithClock(fixedClock(epoch)))
			require.Error(t, err, "byte %d mask %#x accepted", i, mask)
			assert.Contains(t, []ErrorCode{ErrMalformed, ErrInvalidSignature, ErrAlgorithmNotAllowed}, CodeOf(err),
				"byte %d mask %#x: %v", i, mask, err)
		}
	}
}

func TestSegmentCount(t *testing.T) {
	tests := []string{
		"",
		"onlyone",
		"two.parts",
		"a.b.c.d",
		"....",
	}
	for _, tok := range tests {
		_, err := Verify(tok, "secret", []Algorithm{HS256})
		assert.Equal(t, ErrMalformed, CodeOf(err), "token %q", tok)
		_, err = DecodeUnsafe(tok)
		assert.Equal(t, ErrMalformed, CodeOf(err), "token %q", tok)
	}
}

func TestMaxLength(t *testing.T) {
	// 10,000 characters stays under the limit once base64url encoded
	fits := NewClaims().Set("blob", String(strings.Repeat("x", 10_000)))
	token, err := Issue(fits, "secret", HS256)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(token), DefaultMaxLength)

	decoded, err := DecodeUnsafe(token)
	require.NoError(t, err)
	assert.True(t, fits.Equal(decoded.Claims))
	claims, err := Verify(token, "secret", []Algorithm{HS256})
	require.NoError(t, err)
	assert.True(t, fits.Equal(claims))

	tooBig := NewClaims().Set("blob", String(strings.Repeat("x", 13_000)))
	_, err = Issue(tooBig, "secret", HS256)
	assert.Equal(t, ErrEncoding, CodeOf(err))

	// tokens minted elsewhere are still bounded on the verify side
	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString([]byte(`{"algorithm":"HS256","type":"core-token"}`)) + "." +
		enc.EncodeToString([]byte(`{"blob":"`+strings.Repeat("x", DefaultMaxLength)+`"}`))
	sig, err := hmacHS256.sign([]byte(signingInput), "secret", nil)
	require.NoError(t, err)
	oversized := signingInput + "." + enc.EncodeToString(sig)

	_, err = Verify(oversized, "secret", []Algorithm{HS256})
	assert.Equal(t, ErrMalformed, CodeOf(err))
	_, err = DecodeUnsafe(oversized)
	assert.Equal(t, ErrMalformed, CodeOf(err))

	_, err = Verify(oversized, "secret", []Algorithm{HS256}, WithMaxLength(0))
	assert.NoError(t, err)
}

func rawToken(t *testing.T, header, payload, sig string) string {
	t.Helper()
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(header)) + "." + enc.EncodeToString([]byte(payload)) + "." + sig
}

func TestAlgorithmConfusion(t *testing.T) {
	payload := `{"name":"aryaman"}`

	tests := []struct {
		name    string
		token   string
		allowed []Algorithm
	}{
		{"none with empty signature", rawToken(t, `{"algorithm":"none","type":"core-token"}`, payload, ""), []Algorithm{HS256}},
		{"NONE upper case", rawToken(t, `{"algorithm":"NONE","type":"core-token"}`, payload, ""), []Algorithm{HS256, Algorithm("NONE")}},
		{"jwt dialect none", rawToken(t, `{"alg":"none","typ":"JWT"}`, payload, ""), []Algorithm{HS256, RS256}},
		{"RS256 against HS256 verifier", rawToken(t, `{"algorithm":"RS256","type":"core-token"}`, payload, "c2ln"), []Algorithm{HS256}},
		{"unknown algorithm", rawToken(t, `{"algorithm":"HS1","type":"core-token"}`, payload, "c2ln"), []Algorithm{HS256, Algorithm("HS1")}},
		{"empty allow-list", rawToken(t, `{"algorithm":"HS256","type":"core-token"}`, payload, "c2ln"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(tt.token, "secret", tt.allowed)
			require.Error(t, err)
			assert.Equal(t, ErrAlgorithmNotAllowed, CodeOf(err))
		})
	}
}

func TestNoneAlgorithmWhenWhitelisted(t *testing.T) {
	token, err := Issue(sampleClaims(), nil, None)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(token, "."))

	claims, err := Verify(token, nil, []Algorithm{None})
	require.NoError(t, err)
	assert.True(t, sampleClaims().Equal(claims))

	_, err = Verify(token, "secret", []Algorithm{HS256})
	assert.Equal(t, ErrAlgorithmNotAllowed, CodeOf(err))

	_, err = Verify(token+"c2ln", nil, []Algorithm{None})
	assert.Equal(t, ErrInvalidSignature, CodeOf(err))

	_, err = Issue(sampleClaims(), "secret", None)
	assert.Equal(t, ErrInvalidKey, CodeOf(err))
}

func TestHeaderValidation(t *testing.T) {
	payload := `{}`
	tests := []struct {
		name  string
		token string
		field string
	}{
		{"not base64", "!!!." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".c2ln", "header"},
		{"not json", rawToken(t, `algorithm`, payload, "c2ln"), "header"},
		{"missing algorithm", rawToken(t, `{"type":"core-token"}`, payload, "c2ln"), "algorithm"},
		{"numeric algorithm", rawToken(t, `{"algorithm":256}`, payload, "c2ln"), "algorithm"},
		{"conflicting algorithms", rawToken(t, `{"algorithm":"HS256","alg":"none"}`, payload, "c2ln"), "algorithm"},
		{"unknown type", rawToken(t, `{"algorithm":"HS256","type":"saml"}`, payload, "c2ln"), "type"},
		{"repeated algorithm", rawToken(t, `{"algorithm":"HS256","algorithm":"none"}`, payload, "c2ln"), "header"},
		{"repeated alg", rawToken(t, `{"alg":"none","typ":"JWT","alg":"HS256"}`, payload, "c2ln"), "header"},
		{"repeated kid", rawToken(t, `{"algorithm":"HS256","kid":"a","kid":"b"}`, payload, "c2ln"), "header"},
		{"null header", rawToken(t, `null`, payload, "c2ln"), "header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(tt.token, "secret", []Algorithm{HS256})
			require.Error(t, err)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, ErrMalformed, e.Code)
			assert.Equal(t, tt.field, e.Field)

			_, err = DecodeUnsafe(tt.token)
			assert.Equal(t, ErrMalformed, CodeOf(err))
		})
	}
}

func TestMalformedPayloadAfterValidSignature(t *testing.T) {
	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString([]byte(`{"algorithm":"HS256","type":"core-token"}`)) + "." +
		enc.EncodeToString([]byte(`[1,2,3]`))
	sig, err := hmacHS256.sign([]byte(signingInput), "secret", nil)
	require.NoError(t, err)

	_, err = Verify(signingInput+"."+enc.EncodeToString(sig), "secret", []Algorithm{HS256})
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrMalformed, e.Code)
	assert.Equal(t, "payload", e.Field)
}

func TestExpiry(t *testing.T) {
	token, err := Issue(sampleClaims(), "secret", HS256, WithIssueClock(fixedClock(epoch)), ExpiresIn(time.Second))
	require.NoError(t, err)

	_, err = Verify(token, "secret", []Algorithm{HS256}, WithClock(fixedClock(epoch)))
	require.NoError(t, err)

	_, err = Verify(token, "secret", []Algorithm{HS256}, WithClock(fixedClock(epoch.Add(2*time.Second))))
	require.Error(t, err)
	assert.Equal(t, ErrExpired, CodeOf(err))
	assert.Contains(t, err.Error(), "token expired at 2023-11-14T22:13:21Z, now 2023-11-14T22:13:22Z")
	assert.NotContains(t, err.Error(), "secret")

	// exactly at exp is expired
	_, err = Verify(token, "secret", []Algorithm{HS256}, WithClock(fixedClock(epoch.Add(time.Second))))
	assert.Equal(t, ErrExpired, CodeOf(err))

	_, err = Verify(token, "secret", []Algorithm{HS256},
		WithClock(fixedClock(epoch.Add(2*time.Second))), WithClockSkew(5*time.Second))
	assert.NoError(t, err)

	_, err = Verify(token, "secret", []Algorithm{HS256},
		WithClock(fixedClock(epoch.Add(2*time.Second))), WithoutTimeValidation())
	assert.NoError(t, err)
}

func TestNotBeforeAndIssuedAt(t *testing.T) {
	nbfToken, err := Issue(sampleClaims(), "secret", HS256, IssuedAt(epoch), NotBeforeIn(time.Minute))
	require.NoError(t, err)

	_, err = Verify(nbfToken, "secret", []Algorithm{HS256}, WithClock(fixedClock(epoch)))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrNotActive, e.Code)
	assert.Equal(t, ClaimNotBefore, e.Field)

	_, err = Verify(nbfToken, "secret", []Algorithm{HS256}, WithClock(fixedClock(epoch.Add(time.Minute))))
	assert.NoError(t, err)

	_, err = Verify(nbfToken, "secret", []Algorithm{HS256},
		WithClock(fixedClock(epoch)), WithClockSkew(time.Minute))
	assert.NoError(t, err)

	futureToken, err := Issue(sampleClaims(), "secret", HS256, IssuedAt(epoch.Add(time.Hour)))
	require.NoError(t, err)
	_, err = Verify(futureToken, "secret", []Algorithm{HS256}, WithClock(fixedClock(epoch)))
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrNotActive, e.Code)
	assert.Equal(t, ClaimIssuedAt, e.Field)
}

func TestRequireExpiry(t *testing.T) {
	token, err := Issue(sampleClaims(), "secret", HS256)
	require.NoError(t, err)

	_, err = Verify(token, "secret", []Algorithm{HS256}, RequireExpiry())
	assert.Equal(t, ErrMissingClaim, CodeOf(err))

	withExp, err := Issue(sampleClaims(), "secret", HS256, ExpiresIn(time.Hour))
	require.NoError(t, err)
	_, err = Verify(withExp, "secret", []Algorithm{HS256}, RequireExpiry())
	assert.NoError(t, err)
}

func TestNonNumericTimeClaim(t *testing.T) {
	claims := sampleClaims().Set(ClaimExpiresAt, String("tomorrow"))
	token, err := Issue(claims, "secret", HS256)
	require.NoError(t, err)

	_, err = Verify(token, "secret", []Algorithm{HS256})
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrMalformed, e.Code)
	assert.Equal(t, ClaimExpiresAt, e.Field)
}

func TestOutOfRangeTimeClaim(t *testing.T) {
	values := map[string]Value{
		"float":      Number("1e300"),
		"beyond int": Number("99999999999999999999"),
		"max int64":  Int(math.MaxInt64),
		"min int64":  Int(math.MinInt64),
	}

	for _, claim := range []string{ClaimNotBefore, ClaimExpiresAt, ClaimIssuedAt} {
		for name, v := range values {
			t.Run(claim+"/"+name, func(t *testing.T) {
				token, err := Issue(sampleClaims().Set(claim, v), "secret", HS256)
				require.NoError(t, err)

				_, err = Verify(token, "secret", []Algorithm{HS256}, WithClock(fixedClock(epoch)))
				var e *Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, ErrMalformed, e.Code)
				assert.Equal(t, claim, e.Field)
			})
		}
	}

	// the largest accepted date is far in the future, not wrapped into the past
	token, err := Issue(sampleClaims().Set(ClaimNotBefore, Int(1<<53)), "secret", HS256)
	require.NoError(t, err)
	_, err = Verify(token, "secret", []Algorithm{HS256}, WithClock(fixedClock(epoch)))
	assert.Equal(t, ErrNotActive, CodeOf(err))
}

func TestExpiresInRelativeToPayloadIssuedAt(t *testing.T) {
	claims := sampleClaims().SetTime(ClaimIssuedAt, epoch)
	token, err := Issue(claims, "secret", HS256, ExpiresIn(10*time.Second), WithIssueClock(fixedClock(epoch.Add(time.Hour))))
	require.NoError(t, err)

	decoded, err := DecodeUnsafe(token)
	require.NoError(t, err)
	exp, ok, err := decoded.Claims.Time(ClaimExpiresAt)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, exp.Equal(epoch.Add(10*time.Second)))
}

func TestIssueOptionConflicts(t *testing.T) {
	tests := []struct {
		name   string
		claims *Claims
		opt    IssueOption
		field  string
	}{
		{"exp", sampleClaims().Set("exp", Int(1)), ExpiresIn(time.Hour), "exp"},
		{"nbf", sampleClaims().Set("nbf", Int(1)), NotBeforeIn(time.Hour), "nbf"},
		{"sub", sampleClaims().Set("sub", String("a")), WithSubject("b"), "sub"},
		{"iss", sampleClaims().Set("iss", String("a")), WithIssuerClaim("b"), "iss"},
		{"aud", sampleClaims().Set("aud", String("a")), WithAudienceClaim("b"), "aud"},
		{"jti", sampleClaims().Set("jti", String("a")), WithTokenID("b"), "jti"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Issue(tt.claims, "secret", HS256, tt.opt)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, ErrEncoding, e.Code)
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestIssueEncodingErrors(t *testing.T) {
	claims := NewClaims().Set("bad", Number("NaN"))
	_, err := Issue(claims, "secret", HS256)
	assert.Equal(t, ErrEncoding, CodeOf(err))

	self := NewClaims()
	self.Set("self", Object(self))
	_, err = Issue(self, "secret", HS256)
	assert.Equal(t, ErrEncoding, CodeOf(err))

	_, err = Issue(sampleClaims(), "secret", Algorithm("HS1"))
	assert.Equal(t, ErrAlgorithmNotAllowed, CodeOf(err))
}

func TestIssueRejectsInvalidUTF8(t *testing.T) {
	cases := map[string]struct {
		claims *Claims
		opts   []IssueOption
	}{
		"string value":  {claims: sampleClaims().Set("s", String("\xff\xfe"))},
		"nested string": {claims: sampleClaims().Set("list", Array(String("ok"), String("a\x80b")))},
		"claim name":    {claims: sampleClaims().Set("\xff", Int(1))},
		"nested name":   {claims: sampleClaims().Set("obj", Object(NewClaims().Set("k\xc3", Bool(true))))},
		"key id":        {claims: sampleClaims(), opts: []IssueOption{WithKeyID("\xfe")}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := Issue(tc.claims, "secret", HS256, tc.opts...)
			assert.Empty(t, token)
			assert.Equal(t, ErrEncoding, CodeOf(err))
		})
	}

	// valid multi-byte text is carried unchanged
	token, err := Issue(NewClaims().Set("name", String("Zoë 🎫")), "secret", HS256)
	require.NoError(t, err)
	decoded, err := DecodeUnsafe(token)
	require.NoError(t, err)
	name, _ := decoded.Claims.Get("name")
	assert.Equal(t, "Zoë 🎫", name.Interface())
}

func TestRegisteredClaimOptions(t *testing.T) {
	token, err := Issue(NewClaims(), "secret", HS256,
		WithSubject("user-1"),
		WithIssuerClaim("issuer-a"),
		WithAudienceClaim("api", "admin"),
		WithTokenID("fixed-id"),
		WithKeyID("k1"),
	)
	require.NoError(t, err)

	decoded, err := DecodeUnsafe(token)
	require.NoError(t, err)
	assert.Equal(t, "k1", decoded.Header.KeyID)
	assert.Equal(t, "user-1", decoded.Claims.GetString(ClaimSubject))
	assert.Equal(t, "fixed-id", decoded.Claims.GetString(ClaimTokenID))

	_, err = Verify(token, "secret", []Algorithm{HS256}, WithIssuer("issuer-a"), WithAudience("admin"))
	assert.NoError(t, err)

	_, err = Verify(token, "secret", []Algorithm{HS256}, WithIssuer("issuer-b"))
	assert.Equal(t, ErrClaimMismatch, CodeOf(err))

	_, err = Verify(token, "secret", []Algorithm{HS256}, WithAudience("billing"))
	assert.Equal(t, ErrClaimMismatch, CodeOf(err))
}

func TestGeneratedTokenID(t *testing.T) {
	first, err := Issue(NewClaims(), "secret", HS256, WithTokenID(""))
	require.NoError(t, err)
	second, err := Issue(NewClaims(), "secret", HS256, WithTokenID(""))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	decoded, err := DecodeUnsafe(first)
	require.NoError(t, err)
	assert.Len(t, decoded.Claims.GetString(ClaimTokenID), 36)
}

func TestAsymmetricAlgorithms(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p256, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	p521, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	require.NoError(t, err)
	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	otherRSA, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherP256, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	otherEdPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	tests := []struct {
		alg      Algorithm
		priv     any
		pub      any
		wrongPub any
	}{
		{RS256, rsaKey, &rsaKey.PublicKey, &otherRSA.PublicKey},
		{RS384, rsaKey, &rsaKey.PublicKey, &otherRSA.PublicKey},
		{RS512, rsaKey, &rsaKey.PublicKey, &otherRSA.PublicKey},
		{ES256, p256, &p256.PublicKey, &otherP256.PublicKey},
		{ES384, p384, &p384.PublicKey, nil},
		{ES512, p521, &p521.PublicKey, nil},
		{EdDSA, edPriv, edPub, otherEdPub},
	}

	for _, tt := range tests {
		t.Run(string(tt.alg), func(t *testing.T) {
			token, err := Issue(sampleClaims(), tt.priv, tt.alg)
			require.NoError(t, err)

			claims, err := Verify(token, tt.pub, []Algorithm{tt.alg})
			require.NoError(t, err)
			assert.True(t, sampleClaims().Equal(claims))

			// private keys verify too
			_, err = Verify(token, tt.priv, []Algorithm{tt.alg})
			assert.NoError(t, err)

			if tt.wrongPub != nil {
				_, err = Verify(token, tt.wrongPub, []Algorithm{tt.alg})
				assert.Equal(t, ErrInvalidSignature, CodeOf(err))
			}

			_, err = Verify(token, "secret", []Algorithm{tt.alg})
			assert.Equal(t, ErrInvalidKey, CodeOf(err))
		})
	}
}

func TestKeyTypeMismatch(t *testing.T) {
	p256, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tests := []struct {
		name string
		key  any
		alg  Algorithm
	}{
		{"ecdsa key for HS256", p256, HS256},
		{"empty secret", "", HS256},
		{"secret for RS256", "secret", RS256},
		{"P-256 key for ES384", p256, ES384},
		{"public key cannot sign", &p256.PublicKey, ES256},
		{"nil key", nil, EdDSA},
		{"ecdsa key without curve", &ecdsa.PrivateKey{}, ES256},
		{"ecdsa key without scalar", &ecdsa.PrivateKey{PublicKey: p256.PublicKey}, ES256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Issue(sampleClaims(), tt.key, tt.alg)
			assert.Equal(t, ErrInvalidKey, CodeOf(err))
		})
	}

	token, err := Issue(sampleClaims(), p256, ES256)
	require.NoError(t, err)
	for _, key := range []any{&ecdsa.PublicKey{}, &ecdsa.PublicKey{Curve: elliptic.P256()}, &ecdsa.PrivateKey{}} {
		_, err := Verify(token, key, []Algorithm{ES256})
		assert.Equal(t, ErrInvalidKey, CodeOf(err), "key %#v", key)
	}
}

func TestVerifyFuncSelectsKeyByKeyID(t *testing.T) {
	keys := map[string][]byte{
		"2024": []byte("old-secret"),
		"2025": []byte("new-secret"),
	}
	keyfunc := func(h Header) (any, error) {
		k, ok := keys[h.KeyID]
		if !ok {
			return nil, assert.AnError
		}
		return k, nil
	}

	token, err := Issue(sampleClaims(), keys["2025"], HS256, WithKeyID("2025"))
	require.NoError(t, err)
	_, err = VerifyFunc(token, keyfunc, []Algorithm{HS256})
	assert.NoError(t, err)

	unknown, err := Issue(sampleClaims(), keys["2025"], HS256, WithKeyID("1999"))
	require.NoError(t, err)
	_, err = VerifyFunc(unknown, keyfunc, []Algorithm{HS256})
	assert.Equal(t, ErrInvalidKey, CodeOf(err))
	assert.ErrorIs(t, err, assert.AnError)

	_, err = VerifyFunc(token, nil, []Algorithm{HS256})
	assert.Equal(t, ErrInvalidKey, CodeOf(err))
}

func TestKeyfuncNotCalledForDisallowedAlgorithm(t *testing.T) {
	called := false
	keyfunc := func(Header) (any, error) {
		called = true
		return []byte("secret"), nil
	}
	token, err := Issue(sampleClaims(), "secret", HS512)
	require.NoError(t, err)

	_, err = VerifyFunc(token, keyfunc, []Algorithm{HS256})
	assert.Equal(t, ErrAlgorithmNotAllowed, CodeOf(err))
	assert.False(t, called)
}

func TestConcurrentIssueAndVerify(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClaims().Set("n", Int(int64(i)))
			token, err := Issue(c, "shared-secret", HS256)
			if err != nil {
				errs <- err
				return
			}
			got, err := Verify(token, "shared-secret", []Algorithm{HS256})
			if err != nil {
				errs <- err
				return
			}
			if !c.Equal(got) {
				errs <- assert.AnError
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Code: ErrExpired, Field: "exp", Message: "token expired"}
	assert.Equal(t, "[EXPIRED] exp: token expired", err.Error())

	err = &Error{Code: ErrMalformed, Message: "empty token"}
	assert.Equal(t, "[MALFORMED] empty token", err.Error())

	assert.True(t, IsCode(err, ErrMalformed))
	assert.False(t, IsCode(nil, ErrMalformed))
	assert.Equal(t, ErrorCode(""), CodeOf(assert.AnError))
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("ES384")
	require.NoError(t, err)
	assert.Equal(t, ES384, alg)

	_, err = ParseAlgorithm("hs256")
	assert.Error(t, err)

	assert.Len(t, Algorithms(), 11)
	assert.True(t, HS384.Symmetric())
	assert.False(t, EdDSA.Symmetric())
}

func mustGet(t *testing.T, c *Claims, key string) Value {
	t.Helper()
	v, ok := c.Get(key)
	require.True(t, ok, "claim %q missing", key)
	return v
}
