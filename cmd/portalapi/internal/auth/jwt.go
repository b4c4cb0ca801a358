package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

// ClaimsFromTokens returns the full claim set of a verified token response.
// The relying party keeps every claim of the ID token in IDTokenClaims.Claims;
// when that map is empty the raw ID token is decoded instead.
func ClaimsFromTokens(tokens *oidc.Tokens[*oidc.IDTokenClaims]) (map[string]any, error) {
	if tokens == nil {
		return nil, errors.New("no tokens in exchange response")
	}

	claims := map[string]any{}
	if tokens.IDTokenClaims != nil {
		for k, v := range tokens.IDTokenClaims.Claims {
			claims[k] = v
		}
	}
	if len(claims) == 0 {
		if tokens.IDToken == "" {
			return nil, errors.New("no id token in exchange response")
		}
		decoded, err := ClaimsFromIDToken(tokens.IDToken)
		if err != nil {
			return nil, err
		}
		claims = decoded
	}

	if tokens.IDTokenClaims != nil {
		if _, ok := claims["sub"]; !ok && tokens.IDTokenClaims.Subject != "" {
			claims["sub"] = tokens.IDTokenClaims.Subject
		}
	}
	return claims, nil
}

// ClaimsFromIDToken decodes the payload of an ID token without verifying its
// signature. Only use it on tokens the relying party has already verified.
func ClaimsFromIDToken(idToken string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("decode id token: %w", err)
	}
	return map[string]any(claims), nil
}
