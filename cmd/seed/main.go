package main

import (
	"log"
	"os"

	"volunteer-scheduling-be/internal/entity"
	"volunteer-scheduling-be/internal/mapper"
	"volunteer-scheduling-be/internal/model"
	"volunteer-scheduling-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Seeding Plan Catalog...")

	m := mapper.NewSubscriptionMapper()

	for _, plan := range entity.DefaultPlans() {
		// Existing tiers get their prices and limits refreshed in place so
		// re-running the seeder after a catalog change is safe.
		var existing model.Plan
		if err := db.Where("tier = ?", string(plan.Tier)).First(&existing).Error; err == nil {
			existing.Name = plan.Name
			existing.Description = plan.Description
			existing.MonthlyPriceMinor = plan.MonthlyPriceMinor
			existing.Currency = plan.Currency
			existing.VolunteerLimit = plan.VolunteerLimit
			existing.TrialAvailable = plan.TrialAvailable
			existing.IsActive = plan.IsActive
			existing.SortOrder = plan.SortOrder
			if err := db.Save(&existing).Error; err != nil {
				log.Printf("Error updating plan '%s': %v", plan.Tier, err)
			} else {
				log.Printf("Updated plan: %s (%s)", plan.Name, plan.Tier)
			}
			continue
		}

		if err := db.Create(m.PlanToModel(plan)).Error; err != nil {
			log.Printf("Error creating plan '%s': %v", plan.Tier, err)
		} else {
			log.Printf("Created plan: %s (%s)", plan.Name, plan.Tier)
		}
	}

	log.Println("Plan seeding completed!")
}
