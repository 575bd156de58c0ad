package gallery

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BrandingLogoKey is the fixed key of the branding logo. The leading
// underscore keeps it outside the tenant id alphabet.
const BrandingLogoKey = "_branding/logo"

// TenantIDLength is the number of hex characters in a generated tenant id.
const TenantIDLength = 8

var (
	tenantIDPattern  = regexp.MustCompile(`^[0-9a-f]{8}$`)
	assetNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
)

// NewTenantID returns an opaque short identifier such as "a1b2c3d4".
func NewTenantID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:TenantIDLength]
}

// ValidTenantID reports whether id has the generated tenant id shape.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// ValidAssetName reports whether name is a safe single path segment.
func ValidAssetName(name string) bool {
	return assetNamePattern.MatchString(name) && !strings.Contains(name, "..")
}

// ObjectKey joins a tenant id and asset name into a full blob key.
func ObjectKey(tenantID, name string) string {
	return tenantID + "/" + name
}

// TenantPrefix is the key prefix of every blob owned by tenantID.
func TenantPrefix(tenantID string) string {
	return tenantID + "/"
}

// SplitObjectKey splits a full key into tenant id and asset name.
func SplitObjectKey(key string) (tenantID, name string, ok bool) {
	tenantID, name, ok = strings.Cut(key, "/")
	if !ok || tenantID == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return tenantID, name, true
}

// NewAssetName returns a key name whose lexicographic order follows upload
// order: a zero-padded unix-nanosecond timestamp, a random suffix and the
// extension for contentType.
func NewAssetName(contentType string, now time.Time) string {
	var suffix [3]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		copy(suffix[:], uuid.New().NodeID())
	}
	return fmt.Sprintf("%020d-%s%s", now.UnixNano(), hex.EncodeToString(suffix[:]), ExtensionFor(contentType))
}
