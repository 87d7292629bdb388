package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is an HVAC dealer tenant. Each company owns one schema holding its
// proposals and finance applications.
type Company struct {
	Id            string        `json:"id" gorm:"primaryKey"`
	CompanyName   string        `json:"company_name" gorm:"not null;unique"`
	Address       string        `json:"address" gorm:"not null"`
	City          string        `json:"city" gorm:"not null"`
	State         string        `json:"state" gorm:"type:varchar(2);not null"`
	Zip           string        `json:"zip" gorm:"not null"`
	Website       string        `json:"website" gorm:"null"`
	LicenseNumber string        `json:"license_number" gorm:"null"`
	UserId        string        `json:"-"`
	User          User          `json:"user" gorm:"foreignKey:UserId;references:Id"`
	PId           uint          `json:"-"`
	ContactPerson ContactPerson `json:"contact_person" gorm:"foreignKey:PId;references:Id"`
	SchemaName    string        `json:"-"`
}

func (company *Company) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	company.Id = uuid.NewString()
	return
}
