package response

import (
	"github.com/shopspring/decimal"

	"github.com/launchkit/go-rewards/models"
)

// DiscountValidation is the outcome of checking a code against a purchase.
// A failed check is an expected outcome, not an error: Error carries a
// user-displayable reason and Discount is nil.
type DiscountValidation struct {
	Valid    bool                 `json:"valid"`
	Discount *models.DiscountCode `json:"discount,omitempty"`
	Error    *string              `json:"error,omitempty"`
}

// DiscountApplication is the outcome of applying a code to a purchase.
// On failure FinalAmount equals the original amount and DiscountAmount is zero.
type DiscountApplication struct {
	Success        bool                      `json:"success"`
	DiscountAmount decimal.Decimal           `json:"discountAmount"`
	FinalAmount    decimal.Decimal           `json:"finalAmount"`
	Usage          *models.DiscountCodeUsage `json:"usage,omitempty"`
	Error          *string                   `json:"error,omitempty"`
}

// LeaderboardEntry ranks a user by successful referrals, conversion value
// breaking ties. Rank is dense: users with identical keys share a rank.
type LeaderboardEntry struct {
	Rank                 int64           `json:"rank"`
	UserID               string          `json:"userId"`
	SuccessfulReferrals  int64           `json:"successfulReferrals"`
	TotalConversionValue decimal.Decimal `json:"totalConversionValue"`
	TotalClicks          int64           `json:"totalClicks"`
}
