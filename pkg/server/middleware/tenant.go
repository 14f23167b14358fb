package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/de-tools/msp-atlas/pkg/models/api"
	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

const TenantHeader = "X-Tenant-ID"

type tenantKey struct{}

func WithTenant(ctx context.Context, tenant domain.TenantID) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

func TenantFromContext(ctx context.Context) (domain.TenantID, bool) {
	tenant, ok := ctx.Value(tenantKey{}).(domain.TenantID)
	return tenant, ok
}

// Tenant requires a positive tenant id header and adds it to the request
// context and logger. Authenticating the caller happens upstream.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(req.Header.Get(TenantHeader), 10, 64)
		if err != nil || id <= 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "missing or invalid " + TenantHeader + " header"})
			return
		}

		ctx := req.Context()
		logger := zerolog.Ctx(ctx).With().Int64("tenant", id).Logger()
		ctx = logger.WithContext(WithTenant(ctx, domain.TenantID(id)))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}
