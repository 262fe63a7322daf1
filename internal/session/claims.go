package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sprintdesk/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired is returned for tokens whose exp claim has passed.
var ErrExpired = errors.New("session token expired")

// Claims are the user details carried by the backend's token. The signature is not checked
// here; the backend verifies it on every request.
type Claims struct {
	Subject   string    `json:"sub"`
	UserID    model.ID  `json:"id,omitempty"`
	Firstname string    `json:"firstname,omitempty"`
	Lastname  string    `json:"lastname,omitempty"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func (c Claims) DisplayName() string {
	name := strings.TrimSpace(c.Firstname + " " + c.Lastname)
	if name == "" {
		return c.Subject
	}
	return name
}

// ParseClaims decodes token without verifying it. It fails for malformed or expired tokens.
func ParseClaims(token string, now time.Time) (Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Claims{}, errors.New("empty session token")
	}
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("decode session token: %w", err)
	}

	var c Claims
	c.Subject, _ = mc.GetSubject()
	c.Firstname = stringClaim(mc, "firstname", "firstName", "prenom")
	c.Lastname = stringClaim(mc, "lastname", "lastName", "nom")
	c.Role = stringClaim(mc, "role")
	if c.Role == "" {
		if roles, ok := mc["roles"].([]any); ok && len(roles) > 0 {
			c.Role = fmt.Sprint(roles[0])
		}
	}
	switch v := mc["id"].(type) {
	case float64:
		c.UserID = model.ID(fmt.Sprintf("%.0f", v))
	case string:
		c.UserID = model.ID(v)
	}

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("decode session token: %w", err)
	}
	if exp != nil {
		c.ExpiresAt = exp.Time
		if !now.IsZero() && !now.Before(exp.Time) {
			return c, ErrExpired
		}
	}
	return c, nil
}

func stringClaim(mc jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if s, ok := mc[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
