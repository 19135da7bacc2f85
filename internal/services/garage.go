package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/garagehub/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CarConflictError signals that an active car with the same registration
// already exists in this mechanic's fleet; callers should route the user to
// logging a visit on the existing car instead.
type CarConflictError struct {
	ExistingID uuid.UUID
}

func (e *CarConflictError) Error() string {
	return "car already registered for this mechanic"
}

var (
	ErrReassignTargetInvalid = errors.New("reassignment target must be an active mechanic")
	ErrEmptyRegistration     = errors.New("registration number is required")
)

type GarageService struct {
	DB *gorm.DB
}

func NewGarageService(db *gorm.DB) *GarageService {
	return &GarageService{DB: db}
}

type CreateCarInput struct {
	RegistrationNumber string
	VIN                string
	AdditionalInfo     string
	OwnerName          string
	OwnerPhone         string
}

// CreateOrRestoreCar implements the create path of the car lifecycle:
// normalize the plate, find or create the owner, then either restore an
// archived row, report a conflict on an active one, or insert fresh. The
// unique (registration_number, mechanic_id) index is the authority on races:
// a duplicate-key failure from a concurrent insert is reported as the same
// conflict the pre-check would have found.
func (s *GarageService) CreateOrRestoreCar(ctx context.Context, mechanic *models.User, input CreateCarInput) (*models.Car, bool, error) {
	registration, err := NormalizeRegistration(input.RegistrationNumber)
	if err != nil {
		return nil, false, err
	}
	if registration == "" {
		return nil, false, ErrEmptyRegistration
	}

	var (
		car      models.Car
		restored bool
	)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := s.findOrCreateOwner(tx, input.OwnerName, input.OwnerPhone)
		if err != nil {
			return err
		}

		var existing models.Car
		err = tx.Where("registration_number = ? AND mechanic_id = ?", registration, mechanic.ID).
			First(&existing).Error
		switch {
		case err == nil:
			if !existing.IsArchived() {
				return &CarConflictError{ExistingID: existing.ID}
			}
			// Archived -> Active is only legal through this restore path.
			updates := map[string]interface{}{
				"status":          models.CarStatusActive,
				"vin":             strings.ToUpper(strings.TrimSpace(input.VIN)),
				"additional_info": input.AdditionalInfo,
				"owner_id":        owner.ID,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
			if err := tx.Preload("Owner").First(&existing, "id = ?", existing.ID).Error; err != nil {
				return err
			}
			car = existing
			restored = true
			return nil

		case errors.Is(err, gorm.ErrRecordNotFound):
			fresh := models.Car{
				RegistrationNumber: registration,
				VIN:                strings.ToUpper(strings.TrimSpace(input.VIN)),
				AdditionalInfo:     input.AdditionalInfo,
				Status:             models.CarStatusActive,
				OwnerID:            owner.ID,
				MechanicID:         mechanic.ID,
			}
			// The insert runs under a savepoint: postgres aborts the
			// surrounding transaction on a constraint violation, and the
			// rescue read below needs it alive.
			cerr := tx.Transaction(func(tx *gorm.DB) error {
				return tx.Create(&fresh).Error
			})
			if cerr != nil {
				if errors.Is(cerr, gorm.ErrDuplicatedKey) {
					return s.conflictForRace(tx, registration, mechanic.ID)
				}
				return cerr
			}
			fresh.Owner = *owner
			car = fresh
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, false, err
	}

	logger.InfoWithUser(mechanic.ID.String(), "car_registered", map[string]interface{}{
		"car_id":       car.ID.String(),
		"registration": car.RegistrationNumber,
		"restored":     restored,
	})
	return &car, restored, nil
}

func (s *GarageService) findOrCreateOwner(tx *gorm.DB, name, phone string) (*models.CarOwner, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("owner phone number is required")
	}

	var owner models.CarOwner
	err := tx.Where("phone_number = ?", phone).First(&owner).Error
	if err == nil {
		return &owner, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	owner = models.CarOwner{Name: strings.TrimSpace(name), PhoneNumber: phone}
	// Savepoint for the same reason as the car insert: the phone-number
	// constraint may fire on a lost race and the re-read must still run.
	cerr := tx.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&owner).Error
	})
	if cerr != nil {
		if errors.Is(cerr, gorm.ErrDuplicatedKey) {
			// Another request created the owner between lookup and insert.
			if ferr := tx.Where("phone_number = ?", phone).First(&owner).Error; ferr == nil {
				return &owner, nil
			}
		}
		return nil, cerr
	}
	return &owner, nil
}

// conflictForRace converts a lost insert race into the regular conflict (or
// restore-needed) outcome by re-reading the row that beat us.
func (s *GarageService) conflictForRace(tx *gorm.DB, registration string, mechanicID uuid.UUID) error {
	var winner models.Car
	if err := tx.Where("registration_number = ? AND mechanic_id = ?", registration, mechanicID).
		First(&winner).Error; err != nil {
		return err
	}
	return &CarConflictError{ExistingID: winner.ID}
}

// ArchiveCar hides the car from the dashboard without touching its visits.
func (s *GarageService) ArchiveCar(ctx context.Context, car *models.Car) error {
	return s.DB.WithContext(ctx).Model(car).Update("status", models.CarStatusArchived).Error
}

// RestoreCar is the admin-side restore that does not rewrite VIN or owner.
func (s *GarageService) RestoreCar(ctx context.Context, car *models.Car) error {
	return s.DB.WithContext(ctx).Model(car).Update("status", models.CarStatusActive).Error
}

// AddVisit appends a service-history entry. Visits are never edited.
func (s *GarageService) AddVisit(ctx context.Context, car *models.Car, description string, date time.Time) (*models.CarVisit, error) {
	if date.IsZero() {
		date = time.Now().UTC()
	}
	visit := models.CarVisit{
		Date:        date,
		Description: description,
		CarID:       car.ID,
	}
	if err := s.DB.WithContext(ctx).Create(&visit).Error; err != nil {
		return nil, err
	}
	return &visit, nil
}

// ListCarsForMechanic returns the mechanic's active fleet with optional
// case-insensitive substring search on registration or owner phone, in stable
// newest-first order.
func (s *GarageService) ListCarsForMechanic(ctx context.Context, mechanicID uuid.UUID, search string, p utils.Pagination) ([]models.Car, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.Car{}).
		Where("cars.mechanic_id = ? AND cars.status = ?", mechanicID, models.CarStatusActive)

	if term := utils.NormalizeSearch(search); term != "" {
		like := "%" + term + "%"
		query = query.
			Joins("JOIN car_owners ON car_owners.id = cars.owner_id").
			Where("LOWER(cars.registration_number) LIKE ? OR car_owners.phone_number LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var cars []models.Car
	err := utils.ApplyPagination(query.Preload("Owner").Order("cars.created_at DESC, cars.id"), p).
		Find(&cars).Error
	if err != nil {
		return nil, 0, err
	}
	return cars, total, nil
}

// ReassignAndDeactivate moves every car of the departing mechanic to the
// replacement and deactivates the account, all-or-nothing.
func (s *GarageService) ReassignAndDeactivate(ctx context.Context, departing *models.User, replacementID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var replacement models.User
		if err := tx.Preload("Roles").First(&replacement, "id = ?", replacementID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReassignTargetInvalid
			}
			return err
		}
		if !replacement.IsActive || !replacement.IsMechanic() || replacement.ID == departing.ID {
			return ErrReassignTargetInvalid
		}

		if err := tx.Model(&models.Car{}).
			Where("mechanic_id = ?", departing.ID).
			Update("mechanic_id", replacement.ID).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ?", departing.ID).
			Update("is_active", false).Error
	})
}
