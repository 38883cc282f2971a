package serviceimpl_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	go_rewards "github.com/launchkit/go-rewards"
	"github.com/launchkit/go-rewards/models"
	"github.com/launchkit/go-rewards/request"
	"github.com/launchkit/go-rewards/utils"
)

var (
	db     *gorm.DB
	engine *go_rewards.RewardsEngine
)

func TestMain(m *testing.M) {
	var err error
	db, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to initialize test database")
	}

	engine = go_rewards.NewRewardsEngine(db)

	m.Run()
}

// createDefaultSeason makes a fresh season the active default so the tests
// that follow it resolve tiers and codes against it.
func createDefaultSeason(t *testing.T, name, prefix string, allowSelfReferral bool) *models.ReferralSeason {
	season, err := engine.Seasons.CreateSeason(request.CreateSeasonRequest{
		Name:              name,
		StartDate:         time.Now().Add(-time.Hour),
		IsDefault:         true,
		CodePrefix:        &prefix,
		AllowSelfReferral: &allowSelfReferral,
	})
	assert.NoError(t, err, "failed to create season")
	assert.NotNil(t, season)
	assert.True(t, season.IsDefault)
	assert.Equal(t, prefix, season.Config.CodePrefix)
	return season
}

func createTier(t *testing.T, seasonID uint, name string, required int64, rewardType string, rewardValue *string) *models.ReferralTier {
	tier, err := engine.Seasons.CreateTier(seasonID, request.CreateTierRequest{
		Name:              name,
		ReferralsRequired: required,
		RewardType:        rewardType,
		RewardValue:       rewardValue,
	})
	assert.NoError(t, err, "failed to create tier")
	assert.NotNil(t, tier)
	assert.Equal(t, required, tier.ReferralsRequired)
	return tier
}

// signupAndConvert walks one referral through the full lifecycle and returns
// the converted row.
func signupAndConvert(t *testing.T, code, referredUserID string, value decimal.Decimal) *models.Referral {
	referral, err := engine.Referrals.RegisterReferral(code, referredUserID, nil)
	assert.NoError(t, err)
	assert.NotNil(t, referral)

	converted, err := engine.Referrals.ConvertReferral(referral.ID, "subscription", value, nil)
	assert.NoError(t, err)
	assert.NotNil(t, converted)
	assert.Equal(t, models.ReferralStatusConverted, converted.Status)
	return converted
}

func TestSeasonLifecycle(t *testing.T) {
	season := createDefaultSeason(t, "Season Lifecycle", "LIFE", false)
	assert.Equal(t, "season-lifecycle", season.Slug)

	newName := "Season Lifecycle Renamed"
	updated, err := engine.Seasons.UpdateSeason(season.ID, request.UpdateSeasonRequest{Name: &newName})
	assert.NoError(t, err)
	assert.NotNil(t, updated)

	var reloaded models.ReferralSeason
	assert.NoError(t, db.First(&reloaded, season.ID).Error)
	assert.Equal(t, newName, reloaded.Name)
	// Untouched fields keep their values.
	assert.Equal(t, "LIFE", reloaded.Config.CodePrefix)

	other := createDefaultSeason(t, "Season Lifecycle Other", "LIFO", false)
	assert.NoError(t, db.First(&reloaded, season.ID).Error)
	assert.False(t, reloaded.IsDefault, "creating a new default must clear the previous one")

	fetched, err := engine.Seasons.GetDefaultSeason()
	assert.NoError(t, err)
	assert.Equal(t, other.ID, fetched.ID)
}

func TestTiersOrderedByRequirement(t *testing.T) {
	season := createDefaultSeason(t, "Tier Order", "TORD", false)

	createTier(t, season.ID, "Gold", 10, "credit", nil)
	createTier(t, season.ID, "Bronze", 1, "credit", nil)
	createTier(t, season.ID, "Silver", 5, "credit", nil)

	tiers, err := engine.Seasons.GetTiers(season.ID)
	assert.NoError(t, err)
	assert.Len(t, tiers, 3)
	assert.Equal(t, "Bronze", tiers[0].Name)
	assert.Equal(t, "Silver", tiers[1].Name)
	assert.Equal(t, "Gold", tiers[2].Name)
}

func TestGetOrCreateReferralCodeIsIdempotent(t *testing.T) {
	createDefaultSeason(t, "Code Issuance", "ISSU", false)

	first, err := engine.Referrals.GetOrCreateReferralCode("user-issuance", nil)
	assert.NoError(t, err)
	assert.NotNil(t, first)
	assert.True(t, strings.HasPrefix(first.Code, "ISSU-"), "code should carry the season prefix")

	second, err := engine.Referrals.GetOrCreateReferralCode("user-issuance", nil)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Code, second.Code)
}

func TestTrackClickCreatesRowPerClick(t *testing.T) {
	createDefaultSeason(t, "Click Tracking", "CLK", false)

	code, err := engine.Referrals.GetOrCreateReferralCode("user-clicks", nil)
	assert.NoError(t, err)

	src := "newsletter"
	first, err := engine.Referrals.TrackClick(code.Code, request.TrackClickRequest{UTMSource: &src})
	assert.NoError(t, err)
	assert.NotNil(t, first)
	assert.Equal(t, models.ReferralStatusClicked, first.Status)
	assert.Equal(t, "newsletter", *first.UTMSource)

	second, err := engine.Referrals.TrackClick(code.Code, request.TrackClickRequest{})
	assert.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "every click creates a new referral row")

	var reloaded models.ReferralCode
	assert.NoError(t, db.First(&reloaded, code.ID).Error)
	assert.Equal(t, int64(2), reloaded.Clicks)
	assert.NotNil(t, reloaded.LastClickAt)
}

func TestTrackClickUnknownCodeIsNotAnError(t *testing.T) {
	referral, err := engine.Referrals.TrackClick("NOPE-XXXXXX", request.TrackClickRequest{})
	assert.NoError(t, err)
	assert.Nil(t, referral)
}

func TestRegisterReferralUpgradesMostRecentClick(t *testing.T) {
	createDefaultSeason(t, "Signup Attribution", "ATTR", false)

	code, err := engine.Referrals.GetOrCreateReferralCode("user-attr-referrer", nil)
	assert.NoError(t, err)

	click, err := engine.Referrals.TrackClick(code.Code, request.TrackClickRequest{})
	assert.NoError(t, err)

	email := "friend@example.com"
	referral, err := engine.Referrals.RegisterReferral(code.Code, "user-attr-referred", &email)
	assert.NoError(t, err)
	assert.NotNil(t, referral)
	assert.Equal(t, click.ID, referral.ID, "the pending click should be upgraded, not duplicated")
	assert.Equal(t, models.ReferralStatusSignedUp, referral.Status)
	assert.Equal(t, "user-attr-referred", *referral.ReferredUserID)
	assert.NotNil(t, referral.SignupDate)

	// Re-registering is a no-op returning the same row.
	again, err := engine.Referrals.RegisterReferral(code.Code, "user-attr-referred", &email)
	assert.NoError(t, err)
	assert.Equal(t, referral.ID, again.ID)

	var count int64
	db.Model(&models.Referral{}).Where("referred_user_id = ?", "user-attr-referred").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRegisterReferralWithoutPriorClick(t *testing.T) {
	createDefaultSeason(t, "Direct Signup", "DRCT", false)

	code, err := engine.Referrals.GetOrCreateReferralCode("user-direct-referrer", nil)
	assert.NoError(t, err)

	referral, err := engine.Referrals.RegisterReferral(code.Code, "user-direct-referred", nil)
	assert.NoError(t, err)
	assert.NotNil(t, referral)
	assert.Equal(t, models.ReferralStatusSignedUp, referral.Status)
}

func TestRegisterReferralSelfReferralPolicy(t *testing.T) {
	createDefaultSeason(t, "Self Referral Blocked", "SELF", false)

	code, err := engine.Referrals.GetOrCreateReferralCode("user-selfref", nil)
	assert.NoError(t, err)

	blocked, err := engine.Referrals.RegisterReferral(code.Code, "user-selfref", nil)
	assert.NoError(t, err)
	assert.Nil(t, blocked, "self-referral must be rejected by default")

	createDefaultSeason(t, "Self Referral Allowed", "SELP", true)
	permissiveCode, err := engine.Referrals.GetOrCreateReferralCode("user-selfref-ok", nil)
	assert.NoError(t, err)

	allowed, err := engine.Referrals.RegisterReferral(permissiveCode.Code, "user-selfref-ok", nil)
	assert.NoError(t, err)
	assert.NotNil(t, allowed, "season config may explicitly allow self-referral")
}

func TestConvertReferralIsIdempotent(t *testing.T) {
	createDefaultSeason(t, "Conversion", "CONV", false)

	code, err := engine.Referrals.GetOrCreateReferralCode("user-conv-referrer", nil)
	assert.NoError(t, err)

	referral, err := engine.Referrals.RegisterReferral(code.Code, "user-conv-referred", nil)
	assert.NoError(t, err)

	value := decimal.NewFromFloat(29.99)
	converted, err := engine.Referrals.ConvertReferral(referral.ID, "subscription", value, nil)
	assert.NoError(t, err)
	assert.NotNil(t, converted)
	assert.Equal(t, models.ReferralStatusConverted, converted.Status)
	assert.NotNil(t, converted.ConversionDate)
	assert.Equal(t, value.String(), converted.ConversionValue.String())
	firstDate := *converted.ConversionDate

	// A duplicate conversion event affects zero rows and is a no-op.
	repeat, err := engine.Referrals.ConvertReferral(referral.ID, "subscription", value, nil)
	assert.NoError(t, err)
	assert.Nil(t, repeat)

	var reloaded models.Referral
	assert.NoError(t, db.First(&reloaded, referral.ID).Error)
	assert.Equal(t, firstDate.Unix(), reloaded.ConversionDate.Unix(), "conversion date must not change on repeat")
}

func TestUpdateStatsRecomputesFromLedger(t *testing.T) {
	season := createDefaultSeason(t, "Stats Recompute", "STAT", false)
	createTier(t, season.ID, "Bronze", 2, "credit", nil)

	referrer := "user-stats"
	code, err := engine.Referrals.GetOrCreateReferralCode(referrer, nil)
	assert.NoError(t, err)

	_, err = engine.Referrals.TrackClick(code.Code, request.TrackClickRequest{})
	assert.NoError(t, err)
	signupAndConvert(t, code.Code, "user-stats-converted", decimal.NewFromFloat(49.50))

	pending, err := engine.Referrals.RegisterReferral(code.Code, "user-stats-pending", nil)
	assert.NoError(t, err)
	assert.NotNil(t, pending)

	stats, err := engine.Stats.UpdateStats(referrer)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalClicks)
	assert.Equal(t, int64(2), stats.TotalReferrals)
	assert.Equal(t, int64(1), stats.SuccessfulReferrals)
	assert.Equal(t, int64(1), stats.PendingReferrals)
	assert.Equal(t, int64(1), stats.TotalConversions)
	assert.Equal(t, "49.5", stats.TotalConversionValue.String())
	assert.NotNil(t, stats.NextTierID)
	assert.Equal(t, int64(1), *stats.ReferralsToNextTier)

	// Recomputing without new events changes nothing.
	repeat, err := engine.Stats.UpdateStats(referrer)
	assert.NoError(t, err)
	assert.Equal(t, stats.ID, repeat.ID)
	assert.Equal(t, stats.SuccessfulReferrals, repeat.SuccessfulReferrals)
}

func TestLeaderboardDenseRank(t *testing.T) {
	createDefaultSeason(t, "Leaderboard", "LEAD", false)

	seed := func(referrer string, conversions int, value float64) {
		code, err := engine.Referrals.GetOrCreateReferralCode(referrer, nil)
		assert.NoError(t, err)
		for i := 0; i < conversions; i++ {
			signupAndConvert(t, code.Code, referrer+"-friend-"+string(rune('a'+i)), decimal.NewFromFloat(value))
		}
		_, err = engine.Stats.UpdateStats(referrer)
		assert.NoError(t, err)
	}

	seed("lead-top", 3, 10)
	seed("lead-mid-a", 2, 20)
	seed("lead-mid-b", 2, 20)
	seed("lead-low", 1, 5)

	entries, err := engine.Stats.GetLeaderboard(nil, 10)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 4)

	byUser := map[string]int64{}
	for _, e := range entries {
		byUser[e.UserID] = e.Rank
	}
	assert.Equal(t, int64(1), byUser["lead-top"])
	assert.Equal(t, byUser["lead-mid-a"], byUser["lead-mid-b"], "identical keys share a dense rank")
	assert.Greater(t, byUser["lead-low"], byUser["lead-mid-a"])
}

func TestCheckTierProgressGrantsOnceEndToEnd(t *testing.T) {
	season := createDefaultSeason(t, "Tier Progress", "PROG", false)
	payload := `{"code_prefix":"SAVE","value":10}`
	tier := createTier(t, season.ID, "Bronze", 1, models.RewardTypeDiscountCode, &payload)

	referrer := "user-progress"
	code, err := engine.Referrals.GetOrCreateReferralCode(referrer, nil)
	assert.NoError(t, err)

	_, err = engine.Referrals.TrackClick(code.Code, request.TrackClickRequest{})
	assert.NoError(t, err)
	signupAndConvert(t, code.Code, "user-progress-friend", decimal.NewFromFloat(29.99))

	_, err = engine.Stats.UpdateStats(referrer)
	assert.NoError(t, err)

	granted, err := engine.Rewards.CheckTierProgress(referrer)
	assert.NoError(t, err)
	assert.Len(t, granted, 1)
	reward := granted[0]
	assert.Equal(t, tier.ID, reward.TierID)
	assert.True(t, reward.IsUnlocked)
	assert.False(t, reward.IsClaimed)
	assert.NotNil(t, reward.DiscountCodeID)

	var minted models.DiscountCode
	assert.NoError(t, db.First(&minted, *reward.DiscountCodeID).Error)
	assert.Equal(t, models.DiscountTypePercent, minted.Type)
	assert.Equal(t, "10", minted.Value.String())
	assert.Equal(t, models.DiscountSourceReferral, minted.Source)
	assert.Equal(t, reward.ID, *minted.ReferralRewardID)
	assert.True(t, strings.HasPrefix(minted.Code, "SAVE-"))

	// The check is idempotent: nothing new on a repeat run.
	again, err := engine.Rewards.CheckTierProgress(referrer)
	assert.NoError(t, err)
	assert.Empty(t, again)

	var rewardCount int64
	db.Model(&models.ReferralReward{}).Where("user_id = ? AND tier_id = ?", referrer, tier.ID).Count(&rewardCount)
	assert.Equal(t, int64(1), rewardCount)
}

func TestTierMonotonicity(t *testing.T) {
	season := createDefaultSeason(t, "Monotonic Tiers", "MONO", false)
	createTier(t, season.ID, "Bronze", 1, "credit", nil)
	createTier(t, season.ID, "Silver", 2, "credit", nil)

	referrer := "user-mono"
	code, err := engine.Referrals.GetOrCreateReferralCode(referrer, nil)
	assert.NoError(t, err)

	signupAndConvert(t, code.Code, "user-mono-a", decimal.NewFromInt(10))
	_, err = engine.Stats.UpdateStats(referrer)
	assert.NoError(t, err)
	first, err := engine.Rewards.CheckTierProgress(referrer)
	assert.NoError(t, err)
	assert.Len(t, first, 1)

	signupAndConvert(t, code.Code, "user-mono-b", decimal.NewFromInt(10))
	_, err = engine.Stats.UpdateStats(referrer)
	assert.NoError(t, err)
	second, err := engine.Rewards.CheckTierProgress(referrer)
	assert.NoError(t, err)
	assert.Len(t, second, 1, "only the newly met tier is granted")
	assert.NotEqual(t, first[0].TierID, second[0].TierID)

	rewards, total, err := engine.Rewards.GetRewards(request.GetRewardsRequest{UserID: &referrer})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rewards, 2)
}

func TestClaimRewardIsConditional(t *testing.T) {
	season := createDefaultSeason(t, "Claiming", "CLM", false)
	createTier(t, season.ID, "Bronze", 1, "credit", nil)

	referrer := "user-claim"
	code, err := engine.Referrals.GetOrCreateReferralCode(referrer, nil)
	assert.NoError(t, err)
	signupAndConvert(t, code.Code, "user-claim-friend", decimal.NewFromInt(15))
	_, err = engine.Stats.UpdateStats(referrer)
	assert.NoError(t, err)

	granted, err := engine.Rewards.CheckTierProgress(referrer)
	assert.NoError(t, err)
	assert.Len(t, granted, 1)
	rewardID := granted[0].ID

	// A stranger cannot claim someone else's reward.
	stolen, err := engine.Rewards.ClaimReward(rewardID, "user-claim-other")
	assert.NoError(t, err)
	assert.Nil(t, stolen)

	claimed, err := engine.Rewards.ClaimReward(rewardID, referrer)
	assert.NoError(t, err)
	assert.NotNil(t, claimed)
	assert.True(t, claimed.IsClaimed)
	assert.NotNil(t, claimed.ClaimedAt)

	repeat, err := engine.Rewards.ClaimReward(rewardID, referrer)
	assert.NoError(t, err)
	assert.Nil(t, repeat, "claiming twice is a safe no-op")
}

func TestExpireStaleReferrals(t *testing.T) {
	createDefaultSeason(t, "Expiry", "EXP", false)

	code, err := engine.Referrals.GetOrCreateReferralCode("user-expiry", nil)
	assert.NoError(t, err)

	stale, err := engine.Referrals.TrackClick(code.Code, request.TrackClickRequest{})
	assert.NoError(t, err)
	signedUp, err := engine.Referrals.RegisterReferral(code.Code, "user-expiry-friend", nil)
	assert.NoError(t, err)
	assert.Equal(t, stale.ID, signedUp.ID, "registration upgrades the most recent pending click")

	stale, err = engine.Referrals.TrackClick(code.Code, request.TrackClickRequest{})
	assert.NoError(t, err)
	fresh, err := engine.Referrals.TrackClick(code.Code, request.TrackClickRequest{})
	assert.NoError(t, err)

	// Age the first click past the window.
	assert.NoError(t, db.Model(&models.Referral{}).Where("id = ?", stale.ID).
		Update("click_date", time.Now().Add(-48*time.Hour)).Error)

	expired, err := engine.Worker.ExpireStaleReferrals(24 * time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	var reloaded models.Referral
	assert.NoError(t, db.First(&reloaded, stale.ID).Error)
	assert.Equal(t, models.ReferralStatusExpired, reloaded.Status)

	assert.NoError(t, db.First(&reloaded, signedUp.ID).Error)
	assert.Equal(t, models.ReferralStatusSignedUp, reloaded.Status, "attributed referrals never expire")

	assert.NoError(t, db.First(&reloaded, fresh.ID).Error)
	assert.Equal(t, models.ReferralStatusClicked, reloaded.Status, "recent clicks stay pending")

	stats, err := engine.Stats.UpdateStats("user-expiry")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), stats.ExpiredReferrals)
}

func TestGetReferralsFilters(t *testing.T) {
	createDefaultSeason(t, "Referral Queries", "QRY", false)

	referrer := "user-query"
	code, err := engine.Referrals.GetOrCreateReferralCode(referrer, nil)
	assert.NoError(t, err)
	_, err = engine.Referrals.TrackClick(code.Code, request.TrackClickRequest{})
	assert.NoError(t, err)
	signupAndConvert(t, code.Code, "user-query-friend", decimal.NewFromInt(9))

	status := models.ReferralStatusConverted
	converted, total, err := engine.Referrals.GetReferrals(request.GetReferralsRequest{
		ReferrerID: &referrer,
		Status:     &status,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, converted, 1)
	assert.NotNil(t, converted[0].ReferralCode)
	assert.Equal(t, utils.NormalizeCode(code.Code), converted[0].ReferralCode.Code)
}
