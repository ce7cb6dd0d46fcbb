package domain

import "time"

// Resident is the registered profile a credential is issued against.
type Resident struct {
	ID            string    `json:"id" bson:"_id,omitempty"`
	UserID        string    `json:"user_id" bson:"user_id"`
	FirstName     string    `json:"first_name" bson:"first_name"`
	LastName      string    `json:"last_name" bson:"last_name"`
	MiddleName    string    `json:"middle_name,omitempty" bson:"middle_name,omitempty"`
	BirthDate     time.Time `json:"birth_date" bson:"birth_date"`
	Gender        string    `json:"gender" bson:"gender"`
	Address       string    `json:"address" bson:"address"`
	ContactNumber string    `json:"contact_number,omitempty" bson:"contact_number,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// FullName returns "First Last" for display.
func (r *Resident) FullName() string {
	return r.FirstName + " " + r.LastName
}
