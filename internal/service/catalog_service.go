package service

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/apperror"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/query"
	"github.com/Leganyst/reservation-core/internal/repository"
)

type CreateServiceInput struct {
	Name            string
	DurationMinutes int
	Price           float64
	Color           *string
	Attributes      map[string]any
}

type UpdateServiceInput struct {
	Name            *string
	DurationMinutes *int
	Price           *float64
	Color           *string
	IsActive        *bool
	// Сливаются с уже сохранёнными атрибутами; ключ со значением nil удаляется.
	Attributes map[string]any
}

type CreateStaffInput struct {
	FirstName      string
	LastName       string
	Specialization string
	ServiceIDs     []uuid.UUID
}

type UpdateStaffInput struct {
	FirstName      *string
	LastName       *string
	Specialization *string
	IsActive       *bool
}

// CatalogService: сотрудники и услуги. Удаление мягкое (is_active=false),
// брони при этом не затрагиваются.
type CatalogService struct {
	db       *gorm.DB
	staff    *repository.GormStaffRepository
	services *repository.GormServiceRepository
	log      *zap.Logger
}

func NewCatalogService(db *gorm.DB, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{
		db:       db,
		staff:    repository.NewGormStaffRepository(db),
		services: repository.NewGormServiceRepository(db),
		log:      log,
	}
}

// ===== Services =====

func (s *CatalogService) CreateService(ctx context.Context, in CreateServiceInput) (*model.Service, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperror.Validation("name is required", apperror.FieldError{Field: "name", Message: "is required"})
	}
	if in.DurationMinutes <= 0 {
		return nil, apperror.Validation("durationMinutes must be positive",
			apperror.FieldError{Field: "durationMinutes", Message: "must be positive"})
	}
	if in.Price <= 0 {
		return nil, apperror.Validation("price must be positive", apperror.FieldError{Field: "price", Message: "must be positive"})
	}

	svc := &model.Service{
		Name:            strings.TrimSpace(in.Name),
		DurationMinutes: in.DurationMinutes,
		Price:           roundPrice(in.Price),
		Color:           emptyToNil(in.Color),
		IsActive:        true,
	}
	if len(in.Attributes) > 0 {
		svc.Attributes = datatypes.JSONMap(in.Attributes)
	}

	if err := s.services.Create(ctx, svc); err != nil {
		return nil, storeErr(err, nil)
	}
	s.log.Info("service created", zap.String("service_id", svc.ID.String()))
	return svc, nil
}

// UpdateService меняет поля услуги. Длительность уже созданных броней не пересчитывается.
func (s *CatalogService) UpdateService(ctx context.Context, id uuid.UUID, in UpdateServiceInput) (*model.Service, error) {
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.Validation("name must not be empty", apperror.FieldError{Field: "name", Message: "must not be empty"})
		}
		fields["name"] = name
	}
	if in.DurationMinutes != nil {
		if *in.DurationMinutes <= 0 {
			return nil, apperror.Validation("durationMinutes must be positive",
				apperror.FieldError{Field: "durationMinutes", Message: "must be positive"})
		}
		fields["duration_minutes"] = *in.DurationMinutes
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return nil, apperror.Validation("price must be positive", apperror.FieldError{Field: "price", Message: "must be positive"})
		}
		fields["price"] = roundPrice(*in.Price)
	}
	if in.Color != nil {
		fields["color"] = emptyToNil(in.Color)
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.services.WithTx(tx)

		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return storeErr(err, errServiceNotFound)
		}
		if len(in.Attributes) > 0 {
			fields["attributes"] = mergeAttributes(current.Attributes, in.Attributes)
		}
		return repo.Update(ctx, id, fields)
	})
	if err != nil {
		return nil, storeErr(err, errServiceNotFound)
	}
	return s.GetService(ctx, id)
}

func (s *CatalogService) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	svc, err := s.services.GetWithStaff(ctx, id)
	if err != nil {
		return nil, storeErr(err, errServiceNotFound)
	}
	return svc, nil
}

func (s *CatalogService) ListServices(ctx context.Context, opts query.Options) (query.Page[model.Service], error) {
	items, total, err := s.services.List(ctx, opts)
	if err != nil {
		return query.Page[model.Service]{}, storeErr(err, nil)
	}
	return query.NewPage(items, opts, total), nil
}

func (s *CatalogService) DeleteService(ctx context.Context, id uuid.UUID) error {
	if err := s.services.Update(ctx, id, map[string]any{"is_active": false}); err != nil {
		return storeErr(err, errServiceNotFound)
	}
	s.log.Info("service deactivated", zap.String("service_id", id.String()))
	return nil
}

// ===== Staff =====

func (s *CatalogService) CreateStaff(ctx context.Context, in CreateStaffInput) (*model.Staff, error) {
	st := &model.Staff{
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Specialization: strings.TrimSpace(in.Specialization),
		IsActive:       true,
	}
	if st.FirstName == "" || st.LastName == "" || st.Specialization == "" {
		return nil, apperror.Validation("firstName, lastName and specialization are required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staffRepo := s.staff.WithTx(tx)
		if err := staffRepo.Create(ctx, st); err != nil {
			return err
		}
		return s.assign(ctx, staffRepo, s.services.WithTx(tx), st.ID, in.ServiceIDs)
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	s.log.Info("staff created", zap.String("staff_id", st.ID.String()))
	return s.GetStaff(ctx, st.ID)
}

func (s *CatalogService) UpdateStaff(ctx context.Context, id uuid.UUID, in UpdateStaffInput) (*model.Staff, error) {
	fields := map[string]any{}
	for col, v := range map[string]*string{
		"first_name":     in.FirstName,
		"last_name":      in.LastName,
		"specialization": in.Specialization,
	} {
		if v == nil {
			continue
		}
		val := strings.TrimSpace(*v)
		if val == "" {
			return nil, apperror.Validation(col + " must not be empty")
		}
		fields[col] = val
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}

	if len(fields) > 0 {
		if err := s.staff.Update(ctx, id, fields); err != nil {
			return nil, storeErr(err, errStaffNotFound)
		}
	}
	return s.GetStaff(ctx, id)
}

func (s *CatalogService) GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	st, err := s.staff.GetWithServices(ctx, id)
	if err != nil {
		return nil, storeErr(err, errStaffNotFound)
	}
	return st, nil
}

func (s *CatalogService) ListStaff(ctx context.Context, opts query.Options) (query.Page[model.Staff], error) {
	items, total, err := s.staff.List(ctx, opts)
	if err != nil {
		return query.Page[model.Staff]{}, storeErr(err, nil)
	}
	return query.NewPage(items, opts, total), nil
}

func (s *CatalogService) DeleteStaff(ctx context.Context, id uuid.UUID) error {
	if err := s.staff.Update(ctx, id, map[string]any{"is_active": false}); err != nil {
		return storeErr(err, errStaffNotFound)
	}
	s.log.Info("staff deactivated", zap.String("staff_id", id.String()))
	return nil
}

// AssignServices заменяет набор услуг сотрудника целиком в одной транзакции.
func (s *CatalogService) AssignServices(ctx context.Context, staffID uuid.UUID, serviceIDs []uuid.UUID) (*model.Staff, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staffRepo := s.staff.WithTx(tx)
		if _, err := staffRepo.GetByID(ctx, staffID); err != nil {
			return storeErr(err, errStaffNotFound)
		}
		return s.assign(ctx, staffRepo, s.services.WithTx(tx), staffID, serviceIDs)
	})
	if err != nil {
		return nil, storeErr(err, errStaffNotFound)
	}
	return s.GetStaff(ctx, staffID)
}

func (s *CatalogService) assign(
	ctx context.Context,
	staffRepo repository.StaffRepository,
	serviceRepo repository.ServiceRepository,
	staffID uuid.UUID,
	serviceIDs []uuid.UUID,
) error {
	ids := uniqueIDs(serviceIDs)
	if len(ids) > 0 {
		found, err := serviceRepo.ListByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(found) != len(ids) {
			return errServiceNotFound
		}
	}
	return staffRepo.AssignServices(ctx, staffID, ids)
}

func mergeAttributes(current datatypes.JSONMap, patch map[string]any) datatypes.JSONMap {
	merged := datatypes.JSONMap{}
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

func roundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}
