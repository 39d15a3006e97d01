package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/query"
)

type StaffRepository interface {
	Create(ctx context.Context, staff *model.Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	// Сотрудник вместе с назначенными услугами.
	GetWithServices(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	List(ctx context.Context, opts query.Options) ([]model.Staff, int64, error)
	// Заменить набор услуг сотрудника целиком.
	AssignServices(ctx context.Context, staffID uuid.UUID, serviceIDs []uuid.UUID) error
	// Подмножество serviceIDs, которые сотрудник оказывает.
	ProvidedServiceIDs(ctx context.Context, staffID uuid.UUID, serviceIDs []uuid.UUID) ([]uuid.UUID, error)
}

type GormStaffRepository struct {
	db *gorm.DB
}

func NewGormStaffRepository(db *gorm.DB) *GormStaffRepository {
	return &GormStaffRepository{db: db}
}

// WithTx возвращает копию репозитория, работающую внутри транзакции tx.
func (r *GormStaffRepository) WithTx(tx *gorm.DB) *GormStaffRepository {
	return &GormStaffRepository{db: tx}
}

func (r *GormStaffRepository) Create(ctx context.Context, staff *model.Staff) error {
	return r.db.WithContext(ctx).Omit("Services").Create(staff).Error
}

func (r *GormStaffRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	var s model.Staff
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormStaffRepository) GetWithServices(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	var s model.Staff
	err := r.db.WithContext(ctx).
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Order("services.name ASC") }).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormStaffRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Staff{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormStaffRepository) List(ctx context.Context, opts query.Options) ([]model.Staff, int64, error) {
	q, err := StaffListSpec.scope(r.db.WithContext(ctx).Model(&model.Staff{}), opts)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var staff []model.Staff
	err = paginate(StaffListSpec.order(q, opts), opts).
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Order("services.name ASC") }).
		Find(&staff).Error
	if err != nil {
		return nil, 0, err
	}
	return staff, total, nil
}

func (r *GormStaffRepository) AssignServices(ctx context.Context, staffID uuid.UUID, serviceIDs []uuid.UUID) error {
	db := r.db.WithContext(ctx)

	if err := db.Where("staff_id = ?", staffID).Delete(&model.StaffService{}).Error; err != nil {
		return err
	}

	links := make([]model.StaffService, 0, len(serviceIDs))
	seen := make(map[uuid.UUID]struct{}, len(serviceIDs))
	for _, id := range serviceIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		links = append(links, model.StaffService{StaffID: staffID, ServiceID: id})
	}
	if len(links) == 0 {
		return nil
	}
	return db.Omit("Staff", "Service").Create(&links).Error
}

func (r *GormStaffRepository) ProvidedServiceIDs(
	ctx context.Context,
	staffID uuid.UUID,
	serviceIDs []uuid.UUID,
) ([]uuid.UUID, error) {
	if len(serviceIDs) == 0 {
		return []uuid.UUID{}, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.StaffService{}).
		Where("staff_id = ? AND service_id IN ?", staffID, serviceIDs).
		Pluck("service_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
