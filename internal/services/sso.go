package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/garagehub/backend/pkg/utils"
	"gorm.io/gorm"
)

// SSOProfile is the verified claim set this system expects from any federated
// identity collaborator: an email, a display name and a provider-scoped id.
type SSOProfile struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      *string
}

var ErrSSOEmailMissing = errors.New("identity provider did not supply a verified email")

type SSOService struct {
	DB *gorm.DB
}

func NewSSOService(db *gorm.DB) *SSOService {
	return &SSOService{DB: db}
}

// FindOrCreateUser binds the federated identity to an existing local account
// by email, or provisions a fresh one with a placeholder phone number and a
// random unusable password. Provisioned accounts start as frontend users and
// stay phone-gated until the number is completed.
func (s *SSOService) FindOrCreateUser(ctx context.Context, profile *SSOProfile) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return nil, ErrSSOEmailMissing
	}

	var user models.User
	err := s.DB.WithContext(ctx).Preload("Roles").Where("email = ?", email).First(&user).Error
	if err == nil {
		if !user.IsActive {
			return nil, errors.New("account is deactivated")
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	provisioned, err := s.provision(ctx, profile, email)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent callback provisioned the same email; use that row.
			var winner models.User
			if ferr := s.DB.WithContext(ctx).Preload("Roles").
				Where("email = ?", email).First(&winner).Error; ferr == nil {
				return &winner, nil
			}
		}
		return nil, err
	}
	return provisioned, nil
}

func (s *SSOService) provision(ctx context.Context, profile *SSOProfile, email string) (*models.User, error) {
	placeholderSuffix, err := utils.RandomSecret(9)
	if err != nil {
		return nil, err
	}
	unusable, err := utils.RandomSecret(32)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(unusable)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(profile.Name)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	var user models.User
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var frontendRole models.Role
		if err := tx.Where("name = ?", models.RoleFrontendUser).First(&frontendRole).Error; err != nil {
			return err
		}

		name, err := s.uniqueUsername(tx, username)
		if err != nil {
			return err
		}

		user = models.User{
			Username:     name,
			PhoneNumber:  models.PlaceholderPhonePrefix + placeholderSuffix,
			Email:        email,
			PasswordHash: hash,
			IsActive:     true,
			AvatarPath:   profile.AvatarURL,
			Roles:        []models.Role{frontendRole},
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Info("sso_user_provisioned", map[string]interface{}{
		"user_id":  user.ID.String(),
		"provider": profile.Provider,
	})
	return &user, nil
}

// uniqueUsername appends a numeric suffix until the name is free. Display
// names from providers collide far more often than emails do.
func (s *SSOService) uniqueUsername(tx *gorm.DB, base string) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}
