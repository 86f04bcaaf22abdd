package entity

import "github.com/google/uuid"

// Plan is one row of the seeded plan catalog. Prices are monthly minor units;
// the annual price is always derived (monthly x 12 x 0.8), never stored.
type Plan struct {
	Id                uuid.UUID
	Tier              PlanTier
	Name              string
	Description       string
	MonthlyPriceMinor int64
	Currency          string
	VolunteerLimit    int64
	TrialAvailable    bool
	IsActive          bool
	SortOrder         int
}

// DefaultPlans is the canonical catalog cmd/seed writes and tests assume.
func DefaultPlans() []*Plan {
	return []*Plan{
		{
			Tier:              TierFree,
			Name:              "Free",
			Description:       "For small teams getting started",
			MonthlyPriceMinor: 0,
			Currency:          "usd",
			VolunteerLimit:    10,
			SortOrder:         0,
			IsActive:          true,
		},
		{
			Tier:              TierStarter,
			Name:              "Starter",
			Description:       "For growing volunteer programs",
			MonthlyPriceMinor: 2900,
			Currency:          "usd",
			VolunteerLimit:    50,
			SortOrder:         1,
			IsActive:          true,
		},
		{
			Tier:              TierPro,
			Name:              "Pro",
			Description:       "For established organizations",
			MonthlyPriceMinor: 7900,
			Currency:          "usd",
			VolunteerLimit:    200,
			TrialAvailable:    true,
			SortOrder:         2,
			IsActive:          true,
		},
		{
			Tier:              TierEnterprise,
			Name:              "Enterprise",
			Description:       "For large multi-site programs",
			MonthlyPriceMinor: 19900,
			Currency:          "usd",
			VolunteerLimit:    2000,
			TrialAvailable:    true,
			SortOrder:         3,
			IsActive:          true,
		},
	}
}
