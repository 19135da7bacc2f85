package models

import "github.com/google/uuid"

type CarStatus string

const (
	// CarStatusActive cars appear on the mechanic's dashboard.
	CarStatusActive CarStatus = "active"
	// CarStatusArchived cars are hidden; re-registering the same plate under
	// the same mechanic restores the row instead of inserting a duplicate.
	CarStatusArchived CarStatus = "archived"
)

type Car struct {
	BaseModel
	RegistrationNumber string    `json:"registrationNumber" gorm:"type:varchar(10);not null;uniqueIndex:idx_registration_mechanic"`
	VIN                string    `json:"vin" gorm:"column:vin;type:varchar(17);not null"`
	AdditionalInfo     string    `json:"additionalInfo" gorm:"type:text"`
	Status             CarStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	OwnerID            uuid.UUID `json:"ownerID" gorm:"type:uuid;not null;index"`
	MechanicID         uuid.UUID `json:"mechanicID" gorm:"type:uuid;not null;uniqueIndex:idx_registration_mechanic"`

	Owner    CarOwner   `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Mechanic User       `json:"mechanic,omitempty" gorm:"foreignKey:MechanicID;references:ID"`
	Visits   []CarVisit `json:"visits,omitempty" gorm:"foreignKey:CarID;constraint:OnDelete:CASCADE"`
}

func (Car) TableName() string {
	return "cars"
}

func (c *Car) IsArchived() bool {
	return c.Status == CarStatusArchived
}
