package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/avelkins10/kin-hvac-tool-sub001/finance"
)

// Proposal is the live state of one HVAC sales proposal. It supplies the
// customer identity, home data and equipment snapshot the financing routes
// build their lender payloads from.
type Proposal struct {
	ID string `json:"id" gorm:"primaryKey"`

	// Customer identity
	CustomerFirstName string `json:"customer_first_name" gorm:"not null"`
	CustomerLastName  string `json:"customer_last_name" gorm:"not null"`
	CustomerEmail     string `json:"customer_email" gorm:"not null;index"`
	CustomerPhone     string `json:"customer_phone"`

	// Site address
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state" gorm:"type:VARCHAR(2)"`
	Zip    string `json:"zip" gorm:"type:VARCHAR(10)"`

	// Home data
	SquareFootage float64 `json:"square_footage"`

	// Selected equipment snapshot: [{name, tonnage, seer2, price}, ...]
	Equipment   datatypes.JSON `json:"equipment" gorm:"type:jsonb"`
	SystemPrice float64        `json:"system_price" gorm:"type:numeric(12,2)"`

	// "draft" | "sent" | "accepted"
	Status string `json:"status" gorm:"type:VARCHAR(20);default:draft"`

	CreatedBy string `json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Proposal) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return
}

// SystemDesign derives the lender system-design payload from the proposal's
// equipment snapshot and square footage. Returns nil when the proposal
// cannot support one (no equipment selected or unknown square footage).
func (p *Proposal) SystemDesign() *finance.SystemDesign {
	if p.SquareFootage <= 0 || len(p.Equipment) == 0 {
		return nil
	}
	var systems []finance.SystemUnit
	if err := json.Unmarshal(p.Equipment, &systems); err != nil || len(systems) == 0 {
		return nil
	}
	return &finance.SystemDesign{
		SquareFootage: p.SquareFootage,
		Systems:       systems,
	}
}
