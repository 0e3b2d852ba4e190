package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/Wang-tianhao/coretoken/coretoken"
)

// claimFlags collects repeated -claim key=value pairs. Values that parse as
// JSON keep their type; anything else is a string.
type claimFlags struct {
	claims *coretoken.Claims
}

func (f *claimFlags) String() string {
	if f.claims == nil {
		return ""
	}
	return strings.Join(f.claims.Keys(), ",")
}

func (f *claimFlags) Set(pair string) error {
	key, raw, ok := strings.Cut(pair, "=")
	if !ok || key == "" {
		return fmt.Errorf("claim %q must be key=value", pair)
	}
	if f.claims == nil {
		f.claims = coretoken.NewClaims()
	}
	var v coretoken.Value
	if err := v.UnmarshalJSON([]byte(raw)); err != nil {
		v = coretoken.String(raw)
	}
	f.claims.Set(key, v)
	return nil
}

func runIssue(s *settings, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var claims claimFlags
	fs.Var(&claims, "claim", "Claim as key=value (repeatable; JSON values keep their type)")
	var (
		payload = fs.String("payload", "", "Claims as a JSON object; -claim pairs are applied on top")
		alg     = fs.String("alg", s.Algorithm, "Signing algorithm")
		secret  = fs.String("secret", s.Secret, "HMAC secret")
		keyFile = fs.String("key-file", s.KeyFile, "PEM private key for RS*, ES* and EdDSA")
		exp     = fs.Duration("exp", s.Expiry, "Token lifetime (0 for no exp claim)")
		nbf     = fs.Duration("nbf", 0, "Delay before the token becomes valid")
		iat     = fs.Bool("iat", true, "Stamp the iat claim")
		sub     = fs.String("sub", "", "Subject claim")
		iss     = fs.String("iss", s.Issuer, "Issuer claim")
		aud     = fs.String("aud", s.Audience, "Audience claim (comma-separated for several)")
		kid     = fs.String("kid", "", "Key ID header")
		jti     = fs.String("jti", "", `Token ID claim ("auto" generates a UUID)`)
		dialect = fs.String("dialect", s.Dialect, "Header dialect: core or jwt")
		verbose = fs.Bool("v", false, "Print the decoded claims after the token")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	algorithm, err := coretoken.ParseAlgorithm(*alg)
	if err != nil {
		return err
	}
	d, err := coretoken.ParseDialect(*dialect)
	if err != nil {
		return err
	}

	body := coretoken.NewClaims()
	if *payload != "" {
		if err := body.UnmarshalJSON([]byte(*payload)); err != nil {
			return fmt.Errorf("invalid -payload: %w", err)
		}
	}
	if claims.claims != nil {
		for _, k := range claims.claims.Keys() {
			v, _ := claims.claims.Get(k)
			body.Set(k, v)
		}
	}

	opts := []coretoken.IssueOption{coretoken.WithDialect(d)}
	if *iat {
		opts = append(opts, coretoken.WithIssuedAtNow())
	}
	if *exp > 0 {
		opts = append(opts, coretoken.ExpiresIn(*exp))
	}
	if *nbf > 0 {
		opts = append(opts, coretoken.NotBeforeIn(*nbf))
	}
	if *sub != "" {
		opts = append(opts, coretoken.WithSubject(*sub))
	}
	if *iss != "" {
		opts = append(opts, coretoken.WithIssuerClaim(*iss))
	}
	if *aud != "" {
		opts = append(opts, coretoken.WithAudienceClaim(splitList(*aud)...))
	}
	if *kid != "" {
		opts = append(opts, coretoken.WithKeyID(*kid))
	}
	switch *jti {
	case "":
	case "auto":
		opts = append(opts, coretoken.WithTokenID(""))
	default:
		opts = append(opts, coretoken.WithTokenID(*jti))
	}

	keys := *s
	keys.Secret, keys.KeyFile = *secret, *keyFile
	key, err := keys.signingKey(algorithm)
	if err != nil {
		return err
	}

	token, err := coretoken.Issue(body, key, algorithm, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)

	if *verbose {
		decoded, err := coretoken.DecodeUnsafe(token)
		if err != nil {
			return err
		}
		return printJSON(stdout, decoded.Claims)
	}
	return nil
}

func runVerify(s *settings, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		allow      = fs.String("allow", s.Algorithm, "Comma-separated list of accepted algorithms")
		secret     = fs.String("secret", s.Secret, "HMAC secret")
		keyFile    = fs.String("key-file", s.KeyFile, "PEM public (or private) key for RS*, ES* and EdDSA")
		skew       = fs.Duration("skew", s.Skew, "Clock skew tolerance for iat, nbf and exp")
		requireExp = fs.Bool("require-exp", false, "Reject tokens without an exp claim")
		iss        = fs.String("iss", s.Issuer, "Required issuer")
		aud        = fs.String("aud", s.Audience, "Required audience")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := tokenArg(fs, stdin)
	if err != nil {
		return err
	}

	var allowed []coretoken.Algorithm
	for _, name := range splitList(*allow) {
		alg, err := coretoken.ParseAlgorithm(name)
		if err != nil {
			return err
		}
		allowed = append(allowed, alg)
	}

	opts := []coretoken.VerifyOption{coretoken.WithClockSkew(*skew)}
	if *requireExp {
		opts = append(opts, coretoken.RequireExpiry())
	}
	if *iss != "" {
		opts = append(opts, coretoken.WithIssuer(*iss))
	}
	if *aud != "" {
		opts = append(opts, coretoken.WithAudience(*aud))
	}

	keys := *s
	keys.Secret, keys.KeyFile = *secret, *keyFile
	claims, err := coretoken.VerifyFunc(token, func(h coretoken.Header) (any, error) {
		return keys.verificationKey(h.Algorithm)
	}, allowed, opts...)
	if err != nil {
		return err
	}
	return printJSON(stdout, claims)
}

func runDecode(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, err := tokenArg(fs, stdin)
	if err != nil {
		return err
	}

	decoded, err := coretoken.DecodeUnsafe(token)
	if err != nil {
		return err
	}
	fmt.Fprintln(stderr, "WARNING: signature NOT verified; do not trust this content")

	return printJSON(stdout, map[string]any{
		"header": decoded.Header,
		"claims": decoded.Claims,
	})
}

// tokenArg takes the token from the first argument, or from stdin when absent or "-"
func tokenArg(fs *flag.FlagSet, stdin io.Reader) (string, error) {
	if arg := fs.Arg(0); arg != "" && arg != "-" {
		return arg, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("no token given")
	}
	return token, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
