package serviceimpl

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/launchkit/go-rewards/models"
	"github.com/launchkit/go-rewards/response"
	"github.com/launchkit/go-rewards/service"
)

type statsService struct {
	DB *gorm.DB
}

var _ service.StatsService = &statsService{}

func NewStatsService(db *gorm.DB) *statsService {
	return &statsService{DB: db}
}

// UpdateStats fully recomputes the user's aggregate row from the referral
// ledger, the user's codes and the reward table. It is a derived cache, never
// incremented in place — recomputing keeps it honest under concurrent writes.
func (s *statsService) UpdateStats(userID string) (*models.ReferralStats, error) {
	stats := models.ReferralStats{UserID: userID}

	type statusCount struct {
		Status string
		Count  int64
	}
	var byStatus []statusCount
	if err := s.DB.Model(&models.Referral{}).
		Select("status, COUNT(*) AS count").
		Where("referrer_id = ?", userID).
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate referrals: %w", err)
	}
	for _, sc := range byStatus {
		switch sc.Status {
		case models.ReferralStatusSignedUp:
			stats.PendingReferrals = sc.Count
		case models.ReferralStatusConverted:
			stats.SuccessfulReferrals = sc.Count
		case models.ReferralStatusExpired:
			stats.ExpiredReferrals = sc.Count
		}
	}
	stats.TotalReferrals = stats.PendingReferrals + stats.SuccessfulReferrals

	var conversionValue sql.NullString
	row := s.DB.Model(&models.Referral{}).
		Select("COALESCE(CAST(SUM(conversion_value) AS TEXT), '0')").
		Where("referrer_id = ? AND status = ?", userID, models.ReferralStatusConverted).
		Row()
	if err := row.Scan(&conversionValue); err != nil {
		return nil, fmt.Errorf("failed to sum conversion value: %w", err)
	}
	stats.TotalConversions = stats.SuccessfulReferrals
	if conversionValue.Valid && conversionValue.String != "" {
		total, err := decimal.NewFromString(conversionValue.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse conversion value sum: %w", err)
		}
		stats.TotalConversionValue = total
	}

	var clicks sql.NullInt64
	clickRow := s.DB.Model(&models.ReferralCode{}).
		Select("COALESCE(SUM(clicks), 0)").
		Where("user_id = ?", userID).
		Row()
	if err := clickRow.Scan(&clicks); err != nil {
		return nil, fmt.Errorf("failed to sum clicks: %w", err)
	}
	stats.TotalClicks = clicks.Int64

	if err := s.DB.Model(&models.ReferralReward{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalRewardsEarned).Error; err != nil {
		return nil, fmt.Errorf("failed to count rewards earned: %w", err)
	}
	if err := s.DB.Model(&models.ReferralReward{}).
		Where("user_id = ? AND is_claimed = ?", userID, true).
		Count(&stats.TotalRewardsClaimed).Error; err != nil {
		return nil, fmt.Errorf("failed to count rewards claimed: %w", err)
	}

	if err := s.applyTierDistance(&stats); err != nil {
		return nil, err
	}

	// Upsert keyed on user_id; the unique index serializes concurrent writers.
	if err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_clicks", "total_referrals", "successful_referrals",
			"pending_referrals", "expired_referrals", "total_conversions",
			"total_conversion_value", "total_rewards_earned",
			"total_rewards_claimed", "current_tier_id", "next_tier_id",
			"referrals_to_next_tier", "updated_at",
		}),
	}).Create(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert stats for user %s: %w", userID, err)
	}

	var saved models.ReferralStats
	if err := s.DB.Where("user_id = ?", userID).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("failed to reload stats for user %s: %w", userID, err)
	}
	return &saved, nil
}

// applyTierDistance fills the current/next tier fields from the default
// season's tier ladder: the current tier is the highest met requirement, the
// next tier is the first unmet one.
func (s *statsService) applyTierDistance(stats *models.ReferralStats) error {
	var season models.ReferralSeason
	if err := s.DB.Where("is_default = ? AND is_active = ?", true, true).
		First(&season).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to fetch default season: %w", err)
	}

	var tiers []models.ReferralTier
	if err := s.DB.Where("season_id = ? AND is_active = ?", season.ID, true).
		Order("referrals_required ASC, sort_order ASC, id ASC").
		Find(&tiers).Error; err != nil {
		return fmt.Errorf("failed to fetch tiers: %w", err)
	}

	for i := range tiers {
		tier := tiers[i]
		if stats.SuccessfulReferrals >= tier.ReferralsRequired {
			id := tier.ID
			stats.CurrentTierID = &id
			continue
		}
		id := tier.ID
		distance := tier.ReferralsRequired - stats.SuccessfulReferrals
		stats.NextTierID = &id
		stats.ReferralsToNextTier = &distance
		break
	}
	return nil
}

// GetStats returns the cached aggregate row, or (nil, nil) when the user has
// no stats row yet.
func (s *statsService) GetStats(userID string) (*models.ReferralStats, error) {
	var stats models.ReferralStats
	if err := s.DB.Where("user_id = ?", userID).First(&stats).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch stats for user %s: %w", userID, err)
	}
	return &stats, nil
}

// GetLeaderboard ranks users by successful referrals, conversion value
// breaking ties. Rank numbers are dense: rows with identical keys share a
// rank and keep the underlying sort's relative order.
func (s *statsService) GetLeaderboard(seasonID *uint, limit int) ([]response.LeaderboardEntry, error) {
	var rows []models.ReferralStats

	query := s.DB.Model(&models.ReferralStats{}).
		Order("successful_referrals DESC, total_conversion_value DESC")
	if seasonID != nil {
		// Stats rows are scoped to the default season's ladder; a season
		// filter restricts to users holding a code in that season.
		query = query.Where("user_id IN (?)",
			s.DB.Model(&models.ReferralCode{}).Select("user_id").Where("season_id = ?", *seasonID))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}

	entries := make([]response.LeaderboardEntry, 0, len(rows))
	rank := int64(0)
	for i, row := range rows {
		if i == 0 ||
			rows[i-1].SuccessfulReferrals != row.SuccessfulReferrals ||
			!rows[i-1].TotalConversionValue.Equal(row.TotalConversionValue) {
			rank++
		}
		entries = append(entries, response.LeaderboardEntry{
			Rank:                 rank,
			UserID:               row.UserID,
			SuccessfulReferrals:  row.SuccessfulReferrals,
			TotalConversionValue: row.TotalConversionValue,
			TotalClicks:          row.TotalClicks,
		})
	}
	return entries, nil
}
