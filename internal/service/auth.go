package service

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/unioncms/unioncms/internal/domain"
)

var tracer = otel.Tracer("auth")

type AuthService struct {
	secret []byte
	fqdn   string
}

func NewAuthService(secret string, fqdn string) *AuthService {
	return &AuthService{
		secret: []byte(secret),
		fqdn:   fqdn,
	}
}

// SessionClaims is the token body issued at login. Subject carries the actor
// id.
type SessionClaims struct {
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// AuthJwt validates a session token and returns the actor it names.
func (s *AuthService) AuthJwt(ctx context.Context, token string) (domain.Actor, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return domain.Actor{}, err
	}
	if !parsed.Valid {
		err := fmt.Errorf("invalid token")
		span.RecordError(err)
		return domain.Actor{}, err
	}

	audience, _ := claims.GetAudience()
	matched := false
	for _, aud := range audience {
		if aud == s.fqdn {
			matched = true
			break
		}
	}
	if !matched {
		err := fmt.Errorf("jwt audience mismatch: expected %s", s.fqdn)
		span.RecordError(err)
		return domain.Actor{}, err
	}

	if claims.Subject == "" {
		err := fmt.Errorf("missing subject")
		span.RecordError(err)
		return domain.Actor{}, err
	}

	return domain.Actor{
		ID:          claims.Subject,
		DisplayName: claims.DisplayName,
		Role:        domain.ParseRole(claims.Role),
	}, nil
}

// IssueJwt signs a session token for the given actor. Used by tests and the
// bootstrap admin flow.
func (s *AuthService) IssueJwt(actor domain.Actor, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = actor.ID
	claims.Audience = jwt.ClaimStrings{s.fqdn}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		DisplayName:      actor.DisplayName,
		Role:             domain.RoleString(actor.Role),
		RegisteredClaims: claims,
	})
	return token.SignedString(s.secret)
}
