package database

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/avelkins10/kin-hvac-tool-sub001/models"
)

var DB *gorm.DB

func Connect() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, relying on environment")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		panic("Could not connect to database")
	}
}

// AutoMigrate applies the public-schema tables: the tenant registry and the
// webhook routing index. finance_account_routes must live in public because
// inbound webhooks carry no tenant context to resolve a schema from.
func AutoMigrate() {
	DB.AutoMigrate(
		&models.ContactPerson{},
		&models.Company{},
		&models.User{},
		&models.FinanceAccountRoute{},
	)
}
