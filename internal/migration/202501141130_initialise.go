package migration

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/launchkit/go-rewards/models"
)

var Initialise = &gormigrate.Migration{
	ID: "202501141130-rw-918264",
	Migrate: func(db *gorm.DB) error {
		return db.AutoMigrate(
			&models.ReferralSeason{},
			&models.ReferralTier{},
			&models.ReferralCode{},
			&models.Referral{},
			&models.ReferralStats{},
			&models.ReferralReward{},
			&models.DiscountCode{},
			&models.DiscountCodeUsage{},
		)
	},
	Rollback: func(db *gorm.DB) error {
		return db.Migrator().DropTable(
			&models.ReferralSeason{},
			&models.ReferralTier{},
			&models.ReferralCode{},
			&models.Referral{},
			&models.ReferralStats{},
			&models.ReferralReward{},
			&models.DiscountCode{},
			&models.DiscountCodeUsage{},
		)
	},
}
