package plans

import "strings"

// Tier constants (single source of truth)
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// tierRanks defines the total order used for upgrade/downgrade comparison.
var tierRanks = map[string]int{
	TierFree:       0,
	TierBasic:      1,
	TierPro:        2,
	TierEnterprise: 3,
}

// NormalizeTier maps arbitrary input onto a known tier, defaulting to free.
func NormalizeTier(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	if _, ok := tierRanks[t]; ok {
		return t
	}
	return TierFree
}

// IsKnownTier reports whether s names a catalog tier.
func IsKnownTier(s string) bool {
	_, ok := tierRanks[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Rank returns the position of a tier in the upgrade order. Unknown tiers
// rank below free so they never satisfy an upgrade precondition.
func Rank(tier string) int {
	if r, ok := tierRanks[tier]; ok {
		return r
	}
	return -1
}

// IsUpgrade reports whether moving from -> to raises the tier.
func IsUpgrade(from, to string) bool {
	return Rank(to) > Rank(from)
}

// IsDowngrade reports whether moving from -> to lowers the tier.
func IsDowngrade(from, to string) bool {
	return Rank(to) < Rank(from)
}
