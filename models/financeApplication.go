package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FinanceApplication records one financing submission tied to exactly one
// proposal+lender pair. The lender is the source of truth for status; this
// row is a cache plus audit trail.
//
// ExternalID is lender-assigned, absent until the first successful
// submission, and never cleared once set. ResponsePayload is an accreting
// key-wise merge (see finance.MergeResponse): quotes, contract status and
// milestones written by different call sites over time all survive.
type FinanceApplication struct {
	ID         string   `json:"id" gorm:"primaryKey"`
	ProposalID string   `json:"proposal_id" gorm:"not null;index"`
	Proposal   Proposal `json:"-" gorm:"foreignKey:ProposalID;references:ID"`

	Lender string `json:"lender" gorm:"not null;type:VARCHAR(40);index"`

	// finance.ApplicationStatus value
	Status string `json:"status" gorm:"type:VARCHAR(20);not null;default:pending"`

	ExternalID string `json:"external_id" gorm:"index"`

	InputPayload    datatypes.JSON `json:"input_payload" gorm:"type:jsonb"`
	ResponsePayload datatypes.JSON `json:"response_payload" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *FinanceApplication) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return
}

// FinanceAccountRoute lives in the public schema. Webhooks carry no tenant
// context, so the apply route records where a lender account id (and its
// proposal reference) resolves to: which tenant schema and which
// application row.
type FinanceAccountRoute struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ExternalID    string    `json:"external_id" gorm:"uniqueIndex;not null"`
	ProposalRef   string    `json:"proposal_ref" gorm:"index"`
	Lender        string    `json:"lender" gorm:"type:VARCHAR(40)"`
	TenantSchema  string    `json:"tenant_schema" gorm:"not null"`
	ApplicationID string    `json:"application_id" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}
