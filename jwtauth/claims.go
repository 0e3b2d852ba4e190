package jwtauth

import (
	"time"

	"github.com/Wang-tianhao/coretoken/coretoken"
)

// registeredClaims are lifted into Claims fields and left out of Custom
var registeredClaims = map[string]bool{
	coretoken.ClaimSubject:   true,
	coretoken.ClaimIssuer:    true,
	coretoken.ClaimAudience:  true,
	coretoken.ClaimExpiresAt: true,
	coretoken.ClaimNotBefore: true,
	coretoken.ClaimIssuedAt:  true,
	coretoken.ClaimTokenID:   true,
}

// Claims is the verified payload of a request's token. Registered claims are
// lifted into fields; Payload returns every claim in token order.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string // aud as a list, even when the token carries a single string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	TokenID   string
	Custom    map[string]any // Value.Interface forms; numbers are json.Number

	payload *coretoken.Claims
}

// newClaims lifts a verified engine payload into Claims. Time claims have
// already been checked by the engine, so their errors are not revisited.
func newClaims(payload *coretoken.Claims) *Claims {
	c := &Claims{
		Subject: payload.GetString(coretoken.ClaimSubject),
		Issuer:  payload.GetString(coretoken.ClaimIssuer),
		TokenID: payload.GetString(coretoken.ClaimTokenID),
		Custom:  make(map[string]any),
		payload: payload,
	}

	if aud, ok := payload.Get(coretoken.ClaimAudience); ok {
		if s, ok := aud.AsString(); ok {
			c.Audience = []string{s}
		} else if items, ok := aud.AsArray(); ok {
			for _, item := range items {
				if s, ok := item.AsString(); ok {
					c.Audience = append(c.Audience, s)
				}
			}
		}
	}

	c.ExpiresAt, _, _ = payload.Time(coretoken.ClaimExpiresAt)
	c.NotBefore, _, _ = payload.Time(coretoken.ClaimNotBefore)
	c.IssuedAt, _, _ = payload.Time(coretoken.ClaimIssuedAt)

	for _, key := range payload.Keys() {
		if registeredClaims[key] {
			continue
		}
		value, _ := payload.Get(key)
		c.Custom[key] = value.Interface()
	}
	return c
}

// Payload returns a copy of the full claim set in token order
func (c *Claims) Payload() *coretoken.Claims {
	if c.payload == nil {
		return coretoken.NewClaims()
	}
	return c.payload.Clone()
}

// Get returns a claim by name, registered or custom
func (c *Claims) Get(name string) (coretoken.Value, bool) {
	if c.payload == nil {
		return coretoken.Value{}, false
	}
	return c.payload.Get(name)
}

// HasAudience reports whether aud names the given audience
func (c *Claims) HasAudience(audience string) bool {
	for _, a := range c.Audience {
		if a == audience {
			return true
		}
	}
	return false
}

// MarshalJSON writes the claims exactly as they appeared in the token
func (c *Claims) MarshalJSON() ([]byte, error) {
	return c.Payload().MarshalJSON()
}
