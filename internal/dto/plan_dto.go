package dto

import "github.com/google/uuid"

type PlanResponse struct {
	Id                uuid.UUID `json:"id"`
	Tier              string    `json:"tier"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	MonthlyPriceCents int64     `json:"monthly_price_cents"`
	AnnualPriceCents  int64     `json:"annual_price_cents"`
	Currency          string    `json:"currency"`
	VolunteerLimit    int64     `json:"volunteer_limit"`
	TrialAvailable    bool      `json:"trial_available"`
}
