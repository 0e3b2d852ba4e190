package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Wang-tianhao/coretoken/coretoken"
	"github.com/Wang-tianhao/coretoken/jwtauth"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server issues and verifies HMAC-signed tokens over HTTP
type Server struct {
	cfg    TokenConfig
	alg    coretoken.Algorithm
	secret coretoken.Secret
	auth   *jwtauth.Config
	logger *slog.Logger
	issued *prometheus.CounterVec
	now    func() time.Time
}

// NewServer validates cfg and registers the server's collectors with reg
func NewServer(cfg TokenConfig, logger *slog.Logger, reg prometheus.Registerer) (*Server, error) {
	alg, err := coretoken.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	var keyOpt jwtauth.ConfigOption
	switch alg {
	case coretoken.HS256:
		keyOpt = jwtauth.WithHS256([]byte(cfg.Secret))
	case coretoken.HS384:
		keyOpt = jwtauth.WithHS384([]byte(cfg.Secret))
	case coretoken.HS512:
		keyOpt = jwtauth.WithHS512([]byte(cfg.Secret))
	default:
		return nil, fmt.Errorf("tokenserver signs with HS256, HS384 or HS512, got %s", alg)
	}

	authOpts := []jwtauth.ConfigOption{
		keyOpt,
		jwtauth.WithClockSkew(cfg.Skew),
		jwtauth.WithLogger(logger),
		jwtauth.WithMetrics(reg),
		jwtauth.WithRequiredClaims("sub"),
	}
	if cfg.Issuer != "" {
		authOpts = append(authOpts, jwtauth.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		authOpts = append(authOpts, jwtauth.WithAudience(cfg.Audience))
	}
	auth, err := jwtauth.NewConfig(authOpts...)
	if err != nil {
		return nil, err
	}

	issued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenserver_tokens_issued_total",
		Help: "Total number of issue requests by result",
	}, []string{"result"})
	if err := reg.Register(issued); err != nil {
		return nil, fmt.Errorf("registering issue counter: %w", err)
	}

	return &Server{
		cfg:    cfg,
		alg:    alg,
		secret: coretoken.Secret(cfg.Secret),
		auth:   auth,
		logger: logger,
		issued: issued,
		now:    time.Now,
	}, nil
}

// Router builds the gin engine. gatherer backs the /metrics endpoint.
func (s *Server) Router(gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.POST("/tokens", s.issueToken)
	v1.POST("/tokens/verify", s.verifyToken)
	v1.GET("/me", jwtauth.JWTAuth(s.auth), s.me)

	return r
}

type issueRequest struct {
	Subject   string          `json:"subject"`
	Audience  []string        `json:"audience"`
	ExpiresIn string          `json:"expires_in"`
	Claims    json.RawMessage `json:"claims"`
}

type issueResponse struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// serverClaims are stamped by the server and may not come from the request,
// so ttl limits are always measured from the real issue time.
var serverClaims = []string{
	coretoken.ClaimIssuedAt,
	coretoken.ClaimNotBefore,
	coretoken.ClaimExpiresAt,
	coretoken.ClaimTokenID,
}

func (s *Server) issueToken(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.rejectIssue(c, http.StatusBadRequest, "invalid_request", "request body must be a JSON object")
		return
	}
	if req.Subject == "" {
		s.rejectIssue(c, http.StatusBadRequest, "invalid_request", "subject is required")
		return
	}

	ttl := s.cfg.TTL
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			s.rejectIssue(c, http.StatusBadRequest, "invalid_request", "expires_in must be a positive duration such as 30m")
			return
		}
		if d > s.cfg.MaxTTL {
			s.rejectIssue(c, http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("expires_in exceeds the maximum of %s", s.cfg.MaxTTL))
			return
		}
		ttl = d
	}

	claims := coretoken.NewClaims()
	if len(req.Claims) > 0 && string(req.Claims) != "null" {
		if err := claims.UnmarshalJSON(req.Claims); err != nil {
			s.rejectIssue(c, http.StatusBadRequest, "invalid_claims", "claims must be a JSON object without duplicate keys")
			return
		}
	}
	for _, name := range serverClaims {
		if claims.Has(name) {
			s.rejectIssue(c, http.StatusBadRequest, "reserved_claim",
				fmt.Sprintf("claim %q is set by the server", name))
			return
		}
	}

	audience := req.Audience
	if len(audience) == 0 && s.cfg.Audience != "" {
		audience = []string{s.cfg.Audience}
	}

	now := s.now()
	opts := []coretoken.IssueOption{
		coretoken.IssuedAt(now),
		coretoken.ExpiresIn(ttl),
		coretoken.WithSubject(req.Subject),
		coretoken.WithTokenID(""),
		coretoken.WithDialect(coretoken.DialectJWT),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, coretoken.WithIssuerClaim(s.cfg.Issuer))
	}
	if len(audience) > 0 {
		opts = append(opts, coretoken.WithAudienceClaim(audience...))
	}

	token, err := coretoken.Issue(claims, s.secret, s.alg, opts...)
	if err != nil {
		message := err.Error()
		var e *coretoken.Error
		if errors.As(err, &e) {
			message = e.Message
		}
		s.rejectIssue(c, http.StatusBadRequest, string(coretoken.CodeOf(err)), message)
		return
	}

	decoded, err := coretoken.DecodeUnsafe(token)
	if err != nil {
		s.rejectIssue(c, http.StatusInternalServerError, "internal_error", "")
		return
	}
	exp, _, _ := decoded.Claims.Time(coretoken.ClaimExpiresAt)

	s.issued.WithLabelValues("issued").Inc()
	s.logger.Info("token issued",
		slog.String("subject", req.Subject),
		slog.String("jti", decoded.Claims.GetString(coretoken.ClaimTokenID)),
		slog.Duration("ttl", ttl),
	)
	c.JSON(http.StatusCreated, issueResponse{
		Token:     token,
		TokenID:   decoded.Claims.GetString(coretoken.ClaimTokenID),
		ExpiresAt: exp.UTC(),
	})
}

func (s *Server) rejectIssue(c *gin.Context, status int, code, message string) {
	s.issued.WithLabelValues("rejected").Inc()
	c.JSON(status, errorResponse{Error: code, Message: message})
}

type verifyRequest struct {
	Token string `json:"token" binding:"required"`
}

type verifyResponse struct {
	Valid   bool              `json:"valid"`
	Claims  *coretoken.Claims `json:"claims,omitempty"`
	Code    string            `json:"code,omitempty"`
	Field   string            `json:"field,omitempty"`
	Message string            `json:"message,omitempty"`
}

func (s *Server) verifyToken(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "token is required"})
		return
	}

	opts := []coretoken.VerifyOption{
		coretoken.WithClockSkew(s.cfg.Skew),
		coretoken.WithClock(s.now),
		coretoken.RequireExpiry(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, coretoken.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, coretoken.WithAudience(s.cfg.Audience))
	}

	claims, err := coretoken.Verify(req.Token, s.secret, []coretoken.Algorithm{s.alg}, opts...)
	if err != nil {
		resp := verifyResponse{Code: string(coretoken.CodeOf(err))}
		var e *coretoken.Error
		if errors.As(err, &e) {
			resp.Field, resp.Message = e.Field, e.Message
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusOK, verifyResponse{Valid: true, Claims: claims})
}

func (s *Server) me(c *gin.Context) {
	claims := jwtauth.MustGetClaims(c.Request.Context())
	requestID, _ := jwtauth.GetRequestID(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"subject":    claims.Subject,
		"issuer":     claims.Issuer,
		"audience":   claims.Audience,
		"token_id":   claims.TokenID,
		"expires_at": claims.ExpiresAt.UTC(),
		"claims":     claims.Custom,
		"payload":    claims,
		"request_id": requestID,
	})
}
