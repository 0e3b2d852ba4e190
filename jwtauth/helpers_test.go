package jwtauth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"testing"
	"time"

	"github.com/Wang-tianhao/coretoken/coretoken"
	"github.com/gin-gonic/gin"
)

func init() {
	// Set Gin to test mode to suppress logs
	gin.SetMode(gin.TestMode)
}

// mintToken issues a token with the engine, failing the test on error
func mintToken(tb testing.TB, key any, alg coretoken.Algorithm, claims map[string]any, opts ...coretoken.IssueOption) string {
	tb.Helper()
	payload, err := coretoken.ClaimsFromMap(claims)
	if err != nil {
		tb.Fatalf("Failed to build claims: %v", err)
	}
	token, err := coretoken.Issue(payload, key, alg, opts...)
	if err != nil {
		tb.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

// validClaims returns claims for user that expire in an hour
func validClaims(user string) map[string]any {
	return map[string]any{
		"sub": user,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

// craftToken builds a token from raw header and payload JSON with an arbitrary signature
func craftToken(header, payload, signature string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(header)) + "." + enc.EncodeToString([]byte(payload)) + "." + signature
}

func mustSecret() []byte {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}
	return secret
}

func mustCreateConfig(opts ...ConfigOption) *Config {
	cfg, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func mustGenerateRSAKey() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return key
}

func createTestRouter(cfg *Config) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(cfg))
	router.GET("/protected", func(c *gin.Context) {
		claims := MustGetClaims(c.Request.Context())
		c.JSON(200, gin.H{"status": "ok", "user_id": claims.Subject})
	})
	return router
}
