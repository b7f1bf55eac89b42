package plans

import (
	"net/http"

	"dataforge/internal/domain/plans"

	"github.com/gin-gonic/gin"
)

type planResponse struct {
	Tier            string   `json:"tier"`
	Name            string   `json:"name"`
	PriceCents      int64    `json:"price_cents"`
	Currency        string   `json:"currency"`
	MonthlyQuota    int      `json:"monthly_quota"`
	FileSizeLimitMB int      `json:"file_size_limit_mb"`
	APIKeysLimit    int      `json:"api_keys_limit"`
	Features        []string `json:"features"`
}

// ListPlans returns the public plan catalog. Price identifiers and other
// provider internals are not exposed.
func ListPlans(c *gin.Context) {
	out := make([]planResponse, 0, 4)
	for _, p := range plans.All() {
		out = append(out, planResponse{
			Tier:            p.Tier,
			Name:            p.Name,
			PriceCents:      p.PriceCents,
			Currency:        p.Currency,
			MonthlyQuota:    p.MonthlyQuota,
			FileSizeLimitMB: p.FileSizeLimitMB,
			APIKeysLimit:    p.APIKeysLimit,
			Features:        p.Features,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}
