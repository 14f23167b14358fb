package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
)

// WidgetKey hashes the widget kind, tenant and full config. encoding/json
// sorts map keys, so equal configs always produce equal keys.
func WidgetKey(kind domain.WidgetKind, tenant domain.TenantID, config any) (string, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("encode widget config: %w", err)
	}
	return makeKey(string(kind), canonicalTenant(tenant), string(raw)), nil
}

// BundleKey identifies a report bundle for a tenant and period.
func BundleKey(tenant domain.TenantID, name, subType string, rng domain.DateRange) string {
	return makeKey(
		canonicalTenant(tenant),
		strings.ToLower(strings.TrimSpace(name)),
		strings.ToLower(strings.TrimSpace(subType)),
		rng.StartDate(),
		rng.EndDate(),
	)
}

func canonicalTenant(t domain.TenantID) string {
	return strconv.FormatInt(int64(t), 10)
}

func makeKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	h := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(h[:])
}
