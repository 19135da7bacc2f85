package models

import "github.com/google/uuid"

// ShopImage is a picture of a mechanic's repair shop shown on the public
// profile. StoragePath references the object store, never a local file.
type ShopImage struct {
	BaseModel
	MechanicID  uuid.UUID `json:"mechanicID" gorm:"type:uuid;not null;index"`
	StoragePath string    `json:"storagePath" gorm:"type:text;not null"`

	Mechanic User `json:"-" gorm:"foreignKey:MechanicID;references:ID"`
}

func (ShopImage) TableName() string {
	return "shop_images"
}
