package models

// ContactPerson is the dealer's primary office contact, kept separate from
// the login user because the owner who registers is often not the person the
// lender or customers should call.
type ContactPerson struct {
	Id           uint   `json:"id" gorm:"primaryKey"`
	FirstName    string `json:"first_name" gorm:"not null"`
	LastName     string `json:"last_name" gorm:"not null"`
	Role         string `json:"role" gorm:"not null"`
	PhoneNumber  string `json:"phone_number" gorm:"not null"`
	MobileNumber string `json:"mobile_number"`
	Email        string `json:"email"`
}
