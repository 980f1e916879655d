package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
	"github.com/psd2hub/obgate/pkg/slogx"
)

// ErrInvalidRedirectToken reports a redirect callback token that does
// not verify or does not belong to a redirect authorisation.
var ErrInvalidRedirectToken = errors.New("invalid redirect token")

const redirectTokenIssuer = "obgate"

// RedirectService issues the signed links the TPP forwards the PSU to
// for the redirect approach, and completes authorisations when the PSU
// comes back. Tokens are short-lived HS256 JWTs whose subject is the
// authorisation id; the link deadline is baked into the token and
// mirrored on the record, and both are enforced.
type RedirectService struct {
	Store     store.Store
	Resolvers *ResolverSet
	Closing   *ClosingService

	SigningKey []byte
	BaseURL    string
}

// BuildRedirectURL returns the SCA redirect link for the authorisation.
func (s *RedirectService) BuildRedirectURL(a domain.Authorisation) (string, error) {
	if a.ScaApproach != domain.ScaApproachRedirect {
		return "", fmt.Errorf("authorisation %s does not use the redirect approach", a.ID)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   redirectTokenIssuer,
		Subject:  a.ID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if a.RedirectExpiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*a.RedirectExpiresAt)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.SigningKey)
	if err != nil {
		return "", fmt.Errorf("signing redirect token: %w", err)
	}
	return fmt.Sprintf("%s/v1/sca-redirect/%s", strings.TrimRight(s.BaseURL, "/"), token), nil
}

// Complete finishes a redirect authorisation when the PSU returns from
// the bank's authentication pages. success=false fails the record;
// success=true finalises it and applies the parent transition. Calling
// Complete on an already terminal record is a no-op.
func (s *RedirectService) Complete(ctx context.Context, token string, success bool) (domain.Authorisation, error) {
	authID, err := s.parseToken(token)
	if err != nil {
		return domain.Authorisation{}, err
	}

	auth, err := s.Store.Authorisations().GetByID(ctx, authID)
	if err != nil {
		return domain.Authorisation{}, err
	}
	if auth.ScaApproach != domain.ScaApproachRedirect {
		return domain.Authorisation{}, ErrInvalidRedirectToken
	}
	if auth.ScaStatus.IsTerminal() {
		return auth, nil
	}
	if err := enforceDeadlines(ctx, s.Store, &auth); err != nil {
		return domain.Authorisation{}, err
	}

	if !success {
		auth.ScaStatus = domain.ScaStatusFailed
		return s.Store.Authorisations().Update(ctx, auth)
	}

	resolver := s.Resolvers.ForType(auth.ParentType)
	parent, err := resolver.NotYetFinalisedParent(ctx, auth.ParentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The parent lapsed while the PSU was at the bank; the
			// attempt cannot complete anymore.
			auth.ScaStatus = domain.ScaStatusFailed
			return s.Store.Authorisations().Update(ctx, auth)
		}
		return domain.Authorisation{}, err
	}

	updated, err := finaliseAuthorisation(ctx, s.Store, resolver, s.Closing, auth, parent)
	if err != nil {
		return domain.Authorisation{}, err
	}

	slogx.FromContext(ctx).Info("redirect authorisation completed",
		"authorisation_id", updated.ID,
		"parent_id", updated.ParentID,
		"parent_type", string(updated.ParentType),
	)
	return updated, nil
}

func (s *RedirectService) parseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.SigningKey, nil
	}, jwt.WithIssuer(redirectTokenIssuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrRedirectURLExpired
		}
		return "", ErrInvalidRedirectToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidRedirectToken
	}
	return claims.Subject, nil
}
