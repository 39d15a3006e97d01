package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/calendar"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/query"
)

type ReservationRepository interface {
	// Захватить блокировку сотрудника до конца текущей транзакции.
	LockStaff(ctx context.Context, staffID uuid.UUID) error
	// Создать все сегменты одной записью.
	CreateBatch(ctx context.Context, reservations []*model.Reservation) error
	// Получить бронь по ID вместе с сотрудником и услугой.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	// Неотменённые брони сотрудника, пересекающие tr. excludeID != uuid.Nil исключает саму бронь.
	FindOverlapping(ctx context.Context, staffID uuid.UUID, tr calendar.TimeRange, excludeID uuid.UUID) ([]model.Reservation, error)
	// Список с фильтрами; window != nil ограничивает start_time полуинтервалом.
	List(ctx context.Context, opts query.Options, window *calendar.TimeRange) ([]model.Reservation, int64, error)
}

// Реализация на GORM.
type GormReservationRepository struct {
	db *gorm.DB
}

func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) WithTx(tx *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: tx}
}

// LockStaff в PostgreSQL берёт транзакционную advisory-блокировку по staff_id.
// В SQLite писатели и так сериализуются базой, блокировка не нужна.
func (r *GormReservationRepository) LockStaff(ctx context.Context, staffID uuid.UUID) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", staffID.String()).
		Error
}

func (r *GormReservationRepository) CreateBatch(ctx context.Context, reservations []*model.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Staff", "Service").Create(&reservations).Error
}

func (r *GormReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.WithContext(ctx).
		Preload("Staff").
		Preload("Service").
		First(&res, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *GormReservationRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
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

func (r *GormReservationRepository) FindOverlapping(
	ctx context.Context,
	staffID uuid.UUID,
	tr calendar.TimeRange,
	excludeID uuid.UUID,
) ([]model.Reservation, error) {
	q := r.db.WithContext(ctx).
		Where("staff_id = ?", staffID).
		Where("status <> ?", model.ReservationStatusCancelled).
		Where("start_time < ? AND end_time > ?", tr.End, tr.Start)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}

	var out []model.Reservation
	if err := q.Order("start_time ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormReservationRepository) List(
	ctx context.Context,
	opts query.Options,
	window *calendar.TimeRange,
) ([]model.Reservation, int64, error) {
	q, err := ReservationListSpec.scope(r.db.WithContext(ctx).Model(&model.Reservation{}), opts)
	if err != nil {
		return nil, 0, err
	}
	if window != nil {
		q = q.Where("reservations.start_time >= ? AND reservations.start_time < ?", window.Start, window.End)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reservations []model.Reservation
	err = paginate(ReservationListSpec.order(q, opts), opts).
		Preload("Staff").
		Preload("Service").
		Find(&reservations).Error
	if err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}
