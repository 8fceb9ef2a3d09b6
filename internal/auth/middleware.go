package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
)

type contextKey string

const actorIDKey contextKey = "actor_id"

// Verifier wraps the OIDC token verifier so both router flavors share one
// provider handshake.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewVerifier(issuer string) (*Verifier, error) {
	if issuer == "" {
		return nil, fmt.Errorf("OIDC issuer is not configured")
	}

	provider, err := oidc.NewProvider(context.Background(), issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	// SkipClientIDCheck: the admin API accepts tokens from any client in the
	// realm; authorization is by realm membership, not client.
	return &Verifier{
		verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
	}, nil
}

func (v *Verifier) subject(ctx context.Context, authHeader string) (string, error) {
	rawToken, err := bearerToken(authHeader)
	if err != nil {
		return "", err
	}

	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse claims: %w", err)
	}
	return claims.Sub, nil
}

// GinMiddleware authenticates gin routes. The verified subject lands in the
// gin context under "actor_id".
func (v *Verifier) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := v.subject(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(string(actorIDKey), sub)
		c.Next()
	}
}

func bearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}

// GinActorID extracts the authenticated subject from a gin context.
func GinActorID(c *gin.Context) string {
	return c.GetString(string(actorIDKey))
}
