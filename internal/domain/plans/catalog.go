package plans

// UnlimitedQuota marks a plan with no monthly conversion cap.
const UnlimitedQuota = -1

// Plan describes one catalog entry: entitlements and price are fixed per tier.
type Plan struct {
	Tier            string   `json:"tier"`
	Name            string   `json:"name"`
	MonthlyQuota    int      `json:"monthly_quota"` // conversions per month, UnlimitedQuota = no cap
	FileSizeLimitMB int      `json:"file_size_limit_mb"`
	APIKeysLimit    int      `json:"api_keys_limit"`
	PriceCents      int64    `json:"price_cents"`
	Currency        string   `json:"currency"`
	Features        []string `json:"features"`

	// StripePriceID is bound from config at startup; empty for the free tier.
	StripePriceID string `json:"-"`
}

// Rank returns the plan's position in the upgrade order.
func (p *Plan) Rank() int { return Rank(p.Tier) }

var catalog = map[string]*Plan{
	TierFree: {
		Tier:            TierFree,
		Name:            "Free Plan",
		MonthlyQuota:    5,
		FileSizeLimitMB: 5,
		APIKeysLimit:    1,
		PriceCents:      0,
		Currency:        "usd",
		Features:        []string{"5 conversions per month", "5MB file size limit"},
	},
	TierBasic: {
		Tier:            TierBasic,
		Name:            "Basic Plan",
		MonthlyQuota:    100,
		FileSizeLimitMB: 50,
		APIKeysLimit:    3,
		PriceCents:      999,
		Currency:        "usd",
		Features:        []string{"100 conversions per month", "50MB file size limit", "API access"},
	},
	TierPro: {
		Tier:            TierPro,
		Name:            "Pro Plan",
		MonthlyQuota:    500,
		FileSizeLimitMB: 100,
		APIKeysLimit:    5,
		PriceCents:      2499,
		Currency:        "usd",
		Features:        []string{"500 conversions per month", "100MB file size limit", "Priority support"},
	},
	TierEnterprise: {
		Tier:            TierEnterprise,
		Name:            "Enterprise Plan",
		MonthlyQuota:    UnlimitedQuota,
		FileSizeLimitMB: 500,
		APIKeysLimit:    10,
		PriceCents:      9999,
		Currency:        "usd",
		Features:        []string{"Unlimited conversions", "500MB file size limit", "Dedicated support"},
	},
}

// ByTier returns the catalog entry for a tier, or nil for unknown tiers.
func ByTier(tier string) *Plan {
	return catalog[NormalizeTier(tier)]
}

// ByStripePriceID maps a Stripe price back onto a catalog entry.
func ByStripePriceID(priceID string) *Plan {
	if priceID == "" {
		return nil
	}
	for _, p := range catalog {
		if p.StripePriceID == priceID {
			return p
		}
	}
	return nil
}

// All returns the paid-ordered catalog, free tier first.
func All() []*Plan {
	return []*Plan{
		catalog[TierFree],
		catalog[TierBasic],
		catalog[TierPro],
		catalog[TierEnterprise],
	}
}

// BindPriceIDs attaches the per-tier Stripe price identifiers loaded from
// config. Called once at startup before any gateway call.
func BindPriceIDs(basic, pro, enterprise string) {
	catalog[TierBasic].StripePriceID = basic
	catalog[TierPro].StripePriceID = pro
	catalog[TierEnterprise].StripePriceID = enterprise
}
