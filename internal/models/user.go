package models

import "strings"

// PlaceholderPhonePrefix marks accounts provisioned through a federated
// identity provider that have not yet supplied a real phone number.
const PlaceholderPhonePrefix = "sso-pending-"

type User struct {
	BaseModel
	Username     string  `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	PhoneNumber  string  `json:"phoneNumber" gorm:"type:varchar(30);uniqueIndex;not null"`
	Email        string  `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string  `json:"-" gorm:"type:text;not null"`
	IsActive     bool    `json:"isActive" gorm:"not null;default:true"`
	Biography    *string `json:"biography,omitempty" gorm:"type:text"`
	Expertise    *string `json:"expertise,omitempty" gorm:"type:varchar(200)"`
	AvatarPath   *string `json:"avatarPath,omitempty" gorm:"type:text"`

	Roles      []Role      `json:"roles,omitempty" gorm:"many2many:user_roles"`
	Cars       []Car       `json:"-" gorm:"foreignKey:MechanicID"`
	Posts      []Post      `json:"-" gorm:"foreignKey:AuthorID"`
	ShopImages []ShopImage `json:"shopImages,omitempty" gorm:"foreignKey:MechanicID"`
}

func (User) TableName() string {
	return "users"
}

// HasRole is a membership predicate over the loaded role set. It is never
// cached: callers must load Roles fresh for the request before asking.
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, role := range u.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool    { return u.HasRole(RoleAdmin) }
func (u *User) IsMechanic() bool { return u.HasRole(RoleMechanic) }
func (u *User) IsCarOwner() bool { return u.HasRole(RoleCarOwner) }

// PhonePending reports whether the account still carries the SSO placeholder
// and must complete the phone number before gaining full access.
func (u *User) PhonePending() bool {
	return u != nil && strings.HasPrefix(u.PhoneNumber, PlaceholderPhonePrefix)
}
