package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/appetiteclub/apt"
	"github.com/golang-jwt/jwt/v5"
)

const HeaderTenantID = "X-Tenant-ID"

var ErrNoTenant = errors.New("tenant not resolved")

type ctxKey int

const (
	tenantKey ctxKey = iota
	actorKey
)

func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tenantKey).(string)
	return id, ok && id != ""
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the token subject, if the request carried one.
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey).(string)
	return actor
}

// Claims carried by tenant tokens.
type Claims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Resolver attaches the request tenant to the context. With a signing key it
// only trusts HS256 bearer tokens; otherwise it reads the gateway header.
type Resolver struct {
	signingKey []byte
	logger     apt.Logger
}

func NewResolver(config *apt.Config, logger apt.Logger) *Resolver {
	var key string
	if config != nil {
		key, _ = config.GetString("auth.tenant.signing_key")
	}
	return NewKeyedResolver([]byte(key), logger)
}

// NewKeyedResolver verifies tokens with key; an empty key falls back to the
// gateway header.
func NewKeyedResolver(key []byte, logger apt.Logger) *Resolver {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Resolver{signingKey: key, logger: logger}
}

func (rs *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, actor, err := rs.resolve(r)
		if err != nil {
			rs.logger.Debug("tenant not resolved", "path", r.URL.Path, "error", err)
			apt.RespondError(w, http.StatusUnauthorized, "Tenant not resolved")
			return
		}

		ctx := WithTenant(r.Context(), tenantID)
		if actor != "" {
			ctx = WithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (rs *Resolver) resolve(r *http.Request) (string, string, error) {
	if len(rs.signingKey) == 0 {
		id := strings.TrimSpace(r.Header.Get(HeaderTenantID))
		if id == "" {
			return "", "", ErrNoTenant
		}
		return id, "", nil
	}

	raw, ok := bearer(r)
	if !ok {
		return "", "", ErrNoTenant
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return rs.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", fmt.Errorf("cannot parse tenant token: %w", err)
	}
	if claims.TenantID == "" {
		return "", "", ErrNoTenant
	}
	return claims.TenantID, claims.Subject, nil
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
