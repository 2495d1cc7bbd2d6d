package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/web5-playground/internal/domain"
	"github.com/totegamma/web5-playground/jwt"
)

var tracer = otel.Tracer("auth")

type AuthService struct {
	config domain.Config
}

func NewAuthService(config domain.Config) *AuthService {
	return &AuthService{
		config: config,
	}
}

type AuthResult struct {
	DID string
}

// AuthJwt validates a bearer access token minted by this server and
// returns the account DID it was issued for.
func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	_, claims, err := jwt.Validate(token, s.config.ServerKey)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	if claims.Audience != s.config.FQDN {
		err := fmt.Errorf("jwt audience mismatch: expected %s, got %s", s.config.FQDN, claims.Audience)
		span.RecordError(err)
		return nil, err
	}

	if claims.Issuer != s.config.ServerKey {
		err := fmt.Errorf("jwt was not issued by this server")
		span.RecordError(err)
		return nil, err
	}

	if claims.Scope != jwt.ScopeAccess {
		err := fmt.Errorf("token scope %s cannot authorize requests", claims.Scope)
		span.RecordError(err)
		return nil, err
	}

	if !strings.HasPrefix(claims.Subject, "did:") {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	return &AuthResult{DID: claims.Subject}, nil
}
