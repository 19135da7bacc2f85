package models

import (
	"time"

	"github.com/google/uuid"
)

// CarVisit is an append-only service-history entry. Rows are never updated;
// they disappear only when their parent car is hard-deleted (cascade).
type CarVisit struct {
	BaseModel
	Date        time.Time `json:"date" gorm:"not null;index"`
	Description string    `json:"description" gorm:"type:text"`
	CarID       uuid.UUID `json:"carID" gorm:"type:uuid;not null;index"`

	Car Car `json:"-" gorm:"foreignKey:CarID;references:ID"`
}

func (CarVisit) TableName() string {
	return "car_visits"
}
