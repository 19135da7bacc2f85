package models

// Role names are static reference data, seeded once at startup.
const (
	RoleAdmin        = "admin"
	RoleMechanic     = "mechanic"
	RoleCarOwner     = "car_owner"
	RoleFrontendUser = "frontend_user"
	RoleBackendUser  = "backend_user"
)

// AllRoleNames lists every seeded role, in seed order.
var AllRoleNames = []string{RoleAdmin, RoleMechanic, RoleCarOwner, RoleFrontendUser, RoleBackendUser}

type Role struct {
	BaseModel
	Name        string `json:"name" gorm:"type:varchar(50);uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:varchar(100)"`

	Users []User `json:"-" gorm:"many2many:user_roles"`
}

func (Role) TableName() string {
	return "roles"
}

func IsKnownRole(name string) bool {
	for _, known := range AllRoleNames {
		if known == name {
			return true
		}
	}
	return false
}
