package models

// CarOwner is the person whose vehicle is being serviced. Owners are not
// accounts; they are contact records keyed by phone number.
type CarOwner struct {
	BaseModel
	Name        string `json:"name" gorm:"type:varchar(100);not null"`
	PhoneNumber string `json:"phoneNumber" gorm:"type:varchar(30);uniqueIndex;not null"`

	Cars []Car `json:"cars,omitempty" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

func (CarOwner) TableName() string {
	return "car_owners"
}
