package serviceimpl

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/launchkit/go-rewards/models"
	"github.com/launchkit/go-rewards/request"
	"github.com/launchkit/go-rewards/response"
	"github.com/launchkit/go-rewards/service"
	"github.com/launchkit/go-rewards/utils"
)

// User-facing rejection reasons. Each validation failure maps to exactly one.
const (
	reasonInvalidCode    = "Invalid discount code"
	reasonNotStarted     = "This discount code is not active yet"
	reasonExpired        = "This discount code has expired"
	reasonMaxUses        = "This discount code has reached its maximum uses"
	reasonMaxUsesPerUser = "You have already used this discount code the maximum number of times"
	reasonWrongPurchase  = "This discount code cannot be applied to this purchase"
	reasonBelowMinimum   = "This discount code requires a higher purchase amount"
)

type discountService struct {
	DB *gorm.DB
}

var _ service.DiscountService = &discountService{}

func NewDiscountService(db *gorm.DB) *discountService {
	return &discountService{DB: db}
}

// rewardValuePayload is the structured payload a tier carries for
// discount_code rewards.
type rewardValuePayload struct {
	CodePrefix  *string          `json:"code_prefix"`
	Value       *decimal.Decimal `json:"value"`
	ExpiresDays *int             `json:"expires_days"`
	MaxUses     *int64           `json:"max_uses"`
}

// createWithUniqueCode inserts the code row, regenerating the code on a
// uniqueness collision up to the bounded attempt count. The storage
// constraint is the authoritative guard.
func (s *discountService) createWithUniqueCode(prefix string, build func(code string) *models.DiscountCode) (*models.DiscountCode, error) {
	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		code, err := utils.GenerateCode(prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to generate discount code: %w", err)
		}
		discount := build(code)
		err = s.DB.Create(discount).Error
		if err == nil {
			return discount, nil
		}
		if isDuplicateKeyError(err) {
			continue
		}
		return nil, fmt.Errorf("failed to create discount code: %w", err)
	}
	return nil, service.ErrCodeGenerationExhausted
}

// CreateDiscountCode creates an admin-authored code. An explicit code is
// normalized and must be free; otherwise one is generated from the prefix.
func (s *discountService) CreateDiscountCode(req request.CreateDiscountCodeRequest) (*models.DiscountCode, error) {
	appliesTo := models.DiscountAppliesToAll
	if req.AppliesTo != nil {
		appliesTo = *req.AppliesTo
	}
	maxUsesPerUser := int64(1)
	if req.MaxUsesPerUser != nil {
		maxUsesPerUser = *req.MaxUsesPerUser
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	build := func(code string) *models.DiscountCode {
		return &models.DiscountCode{
			Code:           code,
			Type:           req.Type,
			Value:          req.Value,
			AppliesTo:      appliesTo,
			MaxUses:        req.MaxUses,
			MaxUsesPerUser: maxUsesPerUser,
			MinPurchase:    req.MinPurchase,
			MaxDiscount:    req.MaxDiscount,
			Source:         models.DiscountSourceAdmin,
			IsActive:       isActive,
			IsPublic:       req.IsPublic,
			StartsAt:       req.StartsAt,
			ExpiresAt:      req.ExpiresAt,
		}
	}

	if req.Code != nil && *req.Code != "" {
		discount := build(utils.NormalizeCode(*req.Code))
		if err := s.DB.Create(discount).Error; err != nil {
			if isDuplicateKeyError(err) {
				return nil, fmt.Errorf("discount code %q already exists", discount.Code)
			}
			return nil, fmt.Errorf("failed to create discount code: %w", err)
		}
		return discount, nil
	}

	prefix := "SAVE"
	if req.CodePrefix != nil && *req.CodePrefix != "" {
		prefix = *req.CodePrefix
	}
	return s.createWithUniqueCode(prefix, build)
}

// GenerateDiscountCodeFromReward mints a percent code from a tier's reward
// payload on behalf of the reward service. The code is scoped to all
// purchases and tagged as referral-sourced, linked back to the grant.
func (s *discountService) GenerateDiscountCodeFromReward(rewardValue *string, rewardID uint) (*models.DiscountCode, error) {
	var payload rewardValuePayload
	if rewardValue != nil && *rewardValue != "" {
		if err := json.Unmarshal([]byte(*rewardValue), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse reward value: %w", err)
		}
	}

	prefix := "SAVE"
	if payload.CodePrefix != nil && *payload.CodePrefix != "" {
		prefix = *payload.CodePrefix
	}
	value := decimal.NewFromInt(10)
	if payload.Value != nil {
		value = *payload.Value
	}
	var expiresAt *time.Time
	if payload.ExpiresDays != nil {
		t := time.Now().AddDate(0, 0, *payload.ExpiresDays)
		expiresAt = &t
	}

	return s.createWithUniqueCode(prefix, func(code string) *models.DiscountCode {
		return &models.DiscountCode{
			Code:             code,
			Type:             models.DiscountTypePercent,
			Value:            value,
			AppliesTo:        models.DiscountAppliesToAll,
			MaxUses:          payload.MaxUses,
			MaxUsesPerUser:   1,
			Source:           models.DiscountSourceReferral,
			ReferralRewardID: &rewardID,
			IsActive:         true,
			ExpiresAt:        expiresAt,
		}
	})
}

func invalidResult(reason string) *response.DiscountValidation {
	return &response.DiscountValidation{Valid: false, Error: utils.StringPtr(reason)}
}

// ValidateDiscountCode runs the ordered eligibility checks against a
// purchase, short-circuiting on the first failure. A failed check is an
// expected outcome carried in the result; errors are storage failures only.
func (s *discountService) ValidateDiscountCode(code, userID string, purchaseType *string, purchaseAmount *decimal.Decimal) (*response.DiscountValidation, error) {
	normalized := utils.NormalizeCode(code)

	var discount models.DiscountCode
	if err := s.DB.Where("code = ?", normalized).First(&discount).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalidResult(reasonInvalidCode), nil
		}
		return nil, fmt.Errorf("failed to fetch discount code: %w", err)
	}

	now := time.Now()
	if !discount.IsActive {
		return invalidResult(reasonInvalidCode), nil
	}
	if discount.StartsAt != nil && discount.StartsAt.After(now) {
		return invalidResult(reasonNotStarted), nil
	}
	if discount.ExpiresAt != nil && discount.ExpiresAt.Before(now) {
		return invalidResult(reasonExpired), nil
	}
	if discount.MaxUses != nil && discount.CurrentUses >= *discount.MaxUses {
		return invalidResult(reasonMaxUses), nil
	}

	if discount.MaxUsesPerUser > 0 {
		var userUses int64
		if err := s.DB.Model(&models.DiscountCodeUsage{}).
			Where("discount_code_id = ? AND user_id = ?", discount.ID, userID).
			Count(&userUses).Error; err != nil {
			return nil, fmt.Errorf("failed to count user usages: %w", err)
		}
		if userUses >= discount.MaxUsesPerUser {
			return invalidResult(reasonMaxUsesPerUser), nil
		}
	}

	if discount.AppliesTo != models.DiscountAppliesToAll {
		if purchaseType == nil || *purchaseType != discount.AppliesTo {
			return invalidResult(reasonWrongPurchase), nil
		}
	}

	if discount.MinPurchase != nil {
		if purchaseAmount == nil || purchaseAmount.LessThan(*discount.MinPurchase) {
			return invalidResult(reasonBelowMinimum), nil
		}
	}

	return &response.DiscountValidation{Valid: true, Discount: &discount}, nil
}

// computeDiscountAmount applies the type-specific arithmetic and the
// max-discount clamp. free_month/free_trial codes discount nothing here;
// the external subscription logic honors them.
func computeDiscountAmount(discount *models.DiscountCode, originalAmount decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch discount.Type {
	case models.DiscountTypePercent:
		amount = originalAmount.Mul(discount.Value).Div(decimal.NewFromInt(100))
	case models.DiscountTypeFixed:
		amount = discount.Value
	case models.DiscountTypeFreeMonth, models.DiscountTypeFreeTrial:
		amount = decimal.Zero
	default:
		amount = decimal.Zero
	}
	if discount.MaxDiscount != nil && amount.GreaterThan(*discount.MaxDiscount) {
		amount = *discount.MaxDiscount
	}
	return amount
}

// ApplyDiscountCode revalidates and redeems a code against a purchase. The
// usage-ledger insert and the current_uses increment commit in one
// transaction so the next caller's exhaustion check sees an accurate count.
// On a failed validation the original amount passes through untouched.
func (s *discountService) ApplyDiscountCode(code, userID string, originalAmount decimal.Decimal, productType string, productID *string, orderID string) (*response.DiscountApplication, error) {
	validation, err := s.ValidateDiscountCode(code, userID, &productType, &originalAmount)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return &response.DiscountApplication{
			Success:        false,
			DiscountAmount: decimal.Zero,
			FinalAmount:    originalAmount,
			Error:          validation.Error,
		}, nil
	}

	discount := validation.Discount
	discountAmount := computeDiscountAmount(discount, originalAmount)
	finalAmount := originalAmount.Sub(discountAmount)
	if finalAmount.IsNegative() {
		finalAmount = decimal.Zero
	}

	usage := &models.DiscountCodeUsage{
		Reference:      uuid.NewString(),
		DiscountCodeID: discount.ID,
		UserID:         userID,
		OrderID:        orderID,
		OriginalAmount: originalAmount,
		DiscountAmount: discountAmount,
		FinalAmount:    finalAmount,
		ProductType:    productType,
		ProductID:      productID,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(usage).Error; err != nil {
			return fmt.Errorf("failed to record discount usage: %w", err)
		}
		if err := tx.Model(&models.DiscountCode{}).Where("id = ?", discount.ID).
			Update("current_uses", gorm.Expr("current_uses + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to increment discount uses: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &response.DiscountApplication{
		Success:        true,
		DiscountAmount: discountAmount,
		FinalAmount:    finalAmount,
		Usage:          usage,
	}, nil
}

func (s *discountService) GetDiscountCodes(req request.GetDiscountCodesRequest) ([]models.DiscountCode, int64, error) {
	var codes []models.DiscountCode
	var count int64

	query := s.DB.Model(&models.DiscountCode{})
	query = request.ApplyGetDiscountCodesRequest(req, query)

	countQuery := query
	if err := countQuery.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count discount codes: %w", err)
	}

	query = request.ApplyPaginationConditions(query, req.PaginationConditions)

	if err := query.Find(&codes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch discount codes: %w", err)
	}

	return codes, count, nil
}

func (s *discountService) GetUsages(req request.GetUsagesRequest) ([]models.DiscountCodeUsage, int64, error) {
	var usages []models.DiscountCodeUsage
	var count int64

	query := s.DB.Model(&models.DiscountCodeUsage{})
	query = request.ApplyGetUsagesRequest(req, query)

	countQuery := query
	if err := countQuery.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count discount usages: %w", err)
	}

	query = request.ApplyPaginationConditions(query, req.PaginationConditions)

	if err := query.Preload("DiscountCode").Find(&usages).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch discount usages: %w", err)
	}

	return usages, count, nil
}
