package plans

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierOrdering(t *testing.T) {
	assert.True(t, IsUpgrade(TierFree, TierBasic))
	assert.True(t, IsUpgrade(TierBasic, TierPro))
	assert.True(t, IsUpgrade(TierPro, TierEnterprise))
	assert.True(t, IsUpgrade(TierFree, TierEnterprise))

	assert.True(t, IsDowngrade(TierPro, TierBasic))
	assert.True(t, IsDowngrade(TierEnterprise, TierFree))

	assert.False(t, IsUpgrade(TierPro, TierPro))
	assert.False(t, IsDowngrade(TierPro, TierPro))
}

func TestUnknownTierNeverCountsAsUpgrade(t *testing.T) {
	assert.False(t, IsUpgrade(TierFree, "platinum"))
	assert.False(t, IsDowngrade("platinum", TierFree))
	assert.Equal(t, -1, Rank("platinum"))
	assert.False(t, IsKnownTier("platinum"))
}

func TestNormalizeTier(t *testing.T) {
	assert.Equal(t, TierPro, NormalizeTier("Pro"))
	assert.Equal(t, TierPro, NormalizeTier("  PRO "))
	assert.Equal(t, TierFree, NormalizeTier("free"))
	// Unknown input falls back to the free tier rather than erroring; intent
	// validation happens before this in the plan-change path.
	assert.Equal(t, TierFree, NormalizeTier("platinum"))
}

func TestCatalogEntitlements(t *testing.T) {
	basic := ByTier(TierBasic)
	require.NotNil(t, basic)
	assert.Equal(t, 100, basic.MonthlyQuota)
	assert.Equal(t, 50, basic.FileSizeLimitMB)

	free := ByTier(TierFree)
	require.NotNil(t, free)
	assert.Zero(t, free.PriceCents)

	ent := ByTier(TierEnterprise)
	require.NotNil(t, ent)
	assert.Equal(t, UnlimitedQuota, ent.MonthlyQuota)

	// Unknown tiers resolve to the free entitlements, never to a paid plan.
	assert.Same(t, free, ByTier("platinum"))
}

func TestByStripePriceIDAfterBinding(t *testing.T) {
	BindPriceIDs("price_b", "price_p", "price_e")

	p := ByStripePriceID("price_p")
	require.NotNil(t, p)
	assert.Equal(t, TierPro, p.Tier)

	assert.Nil(t, ByStripePriceID("price_unknown"))
	assert.Nil(t, ByStripePriceID(""))
}

func TestPriceIDNotExposedInJSON(t *testing.T) {
	BindPriceIDs("price_b", "price_p", "price_e")
	p := ByTier(TierPro)
	require.NotNil(t, p)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "price_p")
}

func TestAllReturnsEveryTierInUpgradeOrder(t *testing.T) {
	all := All()
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.True(t, IsUpgrade(all[i-1].Tier, all[i].Tier))
	}
}
