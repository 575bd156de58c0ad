package gallery

// Fixed capacity caps.
const (
	MaxTenants         = 4
	MaxAssetsPerTenant = 30
)

// QuotaEnforcer is pure logic over counts.
type QuotaEnforcer struct {
	MaxTenants         int
	MaxAssetsPerTenant int
}

// DefaultQuota returns the fixed 4-tenant, 30-asset caps.
func DefaultQuota() QuotaEnforcer {
	return QuotaEnforcer{MaxTenants: MaxTenants, MaxAssetsPerTenant: MaxAssetsPerTenant}
}

// CanCreateTenant reports whether another tenant fits.
func (q QuotaEnforcer) CanCreateTenant(currentCount int) bool {
	return currentCount < q.MaxTenants
}

// CanUploadAssets reports whether incomingCount more assets fit.
func (q QuotaEnforcer) CanUploadAssets(currentCount, incomingCount int) bool {
	return currentCount+incomingCount <= q.MaxAssetsPerTenant
}

// RemainingAssets returns how many more assets a tenant holding
// currentCount may store.
func (q QuotaEnforcer) RemainingAssets(currentCount int) int {
	if n := q.MaxAssetsPerTenant - currentCount; n > 0 {
		return n
	}
	return 0
}
