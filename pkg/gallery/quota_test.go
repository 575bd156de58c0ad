package gallery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotaEnforcer(t *testing.T) {
	q := DefaultQuota()

	assert.True(t, q.CanCreateTenant(0))
	assert.True(t, q.CanCreateTenant(3))
	assert.False(t, q.CanCreateTenant(4))
	assert.False(t, q.CanCreateTenant(9))

	assert.True(t, q.CanUploadAssets(0, 30))
	assert.True(t, q.CanUploadAssets(29, 1))
	assert.False(t, q.CanUploadAssets(30, 1))
	assert.False(t, q.CanUploadAssets(28, 3))

	assert.Equal(t, 30, q.RemainingAssets(0))
	assert.Equal(t, 2, q.RemainingAssets(28))
	assert.Equal(t, 0, q.RemainingAssets(31))
}
