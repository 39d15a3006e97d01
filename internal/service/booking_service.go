package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/apperror"
	"github.com/Leganyst/reservation-core/internal/calendar"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/query"
	"github.com/Leganyst/reservation-core/internal/repository"
)

const tracerName = "github.com/Leganyst/reservation-core/internal/service"

// BusinessHours: рабочее окно и шаг сетки для расчёта свободных слотов.
type BusinessHours struct {
	OpenHour  int
	CloseHour int
	Step      time.Duration
	Location  *time.Location
}

type CreateReservationInput struct {
	StaffID uuid.UUID
	// Упорядоченная цепочка услуг; одна услуга: обычная бронь.
	ServiceIDs    []uuid.UUID
	CustomerName  string
	CustomerPhone *string
	StartTime     time.Time
	Notes         *string
}

// UpdateReservationInput: частичное обновление; nil означает «не менять».
type UpdateReservationInput struct {
	StaffID       *uuid.UUID
	ServiceID     *uuid.UUID
	StartTime     *time.Time
	CustomerName  *string
	CustomerPhone *string
	Notes         *string
}

func (in UpdateReservationInput) reschedules() bool {
	return in.StaffID != nil || in.ServiceID != nil || in.StartTime != nil
}

// BookingService (движок бронирования): проверка доступности сотрудника,
// расчёт интервалов и атомарная запись цепочек.
type BookingService struct {
	db           *gorm.DB
	staff        *repository.GormStaffRepository
	services     *repository.GormServiceRepository
	reservations *repository.GormReservationRepository
	events       *repository.GormEventRepository

	hours  BusinessHours
	log    *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewBookingService(db *gorm.DB, hours BusinessHours, log *zap.Logger) *BookingService {
	if hours.Location == nil {
		hours.Location = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingService{
		db:           db,
		staff:        repository.NewGormStaffRepository(db),
		services:     repository.NewGormServiceRepository(db),
		reservations: repository.NewGormReservationRepository(db),
		events:       repository.NewGormEventRepository(db),
		hours:        hours,
		log:          log,
		tracer:       otel.Tracer(tracerName),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// txRepos: репозитории, привязанные к одной транзакции.
type txRepos struct {
	staff        *repository.GormStaffRepository
	services     *repository.GormServiceRepository
	reservations *repository.GormReservationRepository
	events       *repository.GormEventRepository
}

func (s *BookingService) inTx(ctx context.Context, fn func(r txRepos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(txRepos{
			staff:        s.staff.WithTx(tx),
			services:     s.services.WithTx(tx),
			reservations: s.reservations.WithTx(tx),
			events:       s.events.WithTx(tx),
		})
	})
}

func (s *BookingService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "BookingService."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Create бронирует одну услугу или цепочку услуг подряд у одного сотрудника.
// Либо записываются все сегменты, либо ни одного.
func (s *BookingService) Create(ctx context.Context, in CreateReservationInput) (_ []model.Reservation, err error) {
	ctx, span := s.startSpan(ctx, "Create",
		attribute.String("staff.id", in.StaffID.String()),
		attribute.Int("services.count", len(in.ServiceIDs)),
	)
	defer func() { endSpan(span, err) }()

	ids := uniqueIDs(in.ServiceIDs)
	if len(ids) == 0 {
		return nil, errNoServices
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return nil, apperror.Validation("customerName is required",
			apperror.FieldError{Field: "customerName", Message: "is required"})
	}
	if in.StartTime.IsZero() {
		return nil, apperror.Validation("startTime is required",
			apperror.FieldError{Field: "startTime", Message: "is required"})
	}
	start := in.StartTime.UTC()

	var created []*model.Reservation
	err = s.inTx(ctx, func(r txRepos) error {
		if err := r.reservations.LockStaff(ctx, in.StaffID); err != nil {
			return err
		}

		services, err := resolveActiveServices(ctx, r.services, ids)
		if err != nil {
			return err
		}
		staff, err := checkEligibility(ctx, r.staff, in.StaffID, ids)
		if err != nil {
			return err
		}

		durations := make([]time.Duration, len(services))
		for i := range services {
			durations[i] = services[i].Duration()
		}
		segments, err := calendar.BuildChain(start, durations)
		if err != nil {
			return apperror.Validation(err.Error())
		}
		total, _ := calendar.Span(segments)

		conflicts, err := r.reservations.FindOverlapping(ctx, in.StaffID, total, uuid.Nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return errConflict
		}

		created = make([]*model.Reservation, len(segments))
		for i, seg := range segments {
			created[i] = &model.Reservation{
				ID:            uuid.New(),
				StaffID:       in.StaffID,
				ServiceID:     services[i].ID,
				CustomerName:  strings.TrimSpace(in.CustomerName),
				CustomerPhone: emptyToNil(in.CustomerPhone),
				StartTime:     seg.Start,
				EndTime:       seg.End,
				Notes:         emptyToNil(in.Notes),
				Status:        model.ReservationStatusPending,
			}
		}
		if err := r.reservations.CreateBatch(ctx, created); err != nil {
			return err
		}

		events := make([]*model.Event, 0, len(created))
		for _, res := range created {
			events = append(events, newEvent(model.EventTypeReservationCreated, res, ""))
		}
		if err := r.events.Append(ctx, events...); err != nil {
			return err
		}

		for i, res := range created {
			res.Staff = staff
			res.Service = &services[i]
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}

	out := make([]model.Reservation, len(created))
	for i, res := range created {
		out[i] = *res
	}
	s.log.Info("reservation created",
		zap.String("staff_id", in.StaffID.String()),
		zap.Int("segments", len(out)),
		zap.Time("start", start),
	)
	return out, nil
}

// Update меняет клиентские поля и, при смене сотрудника/услуги/времени,
// пересчитывает интервал с повторной проверкой пересечений.
func (s *BookingService) Update(ctx context.Context, id uuid.UUID, in UpdateReservationInput) (_ *model.Reservation, err error) {
	ctx, span := s.startSpan(ctx, "Update", attribute.String("reservation.id", id.String()))
	defer func() { endSpan(span, err) }()

	fields := map[string]any{}
	if in.CustomerName != nil {
		name := strings.TrimSpace(*in.CustomerName)
		if name == "" {
			return nil, apperror.Validation("customerName must not be empty",
				apperror.FieldError{Field: "customerName", Message: "must not be empty"})
		}
		fields["customer_name"] = name
	}
	if in.CustomerPhone != nil {
		fields["customer_phone"] = emptyToNil(in.CustomerPhone)
	}
	if in.Notes != nil {
		fields["notes"] = emptyToNil(in.Notes)
	}

	err = s.inTx(ctx, func(r txRepos) error {
		current, err := r.reservations.GetByID(ctx, id)
		if err != nil {
			return storeErr(err, errReservationNotFound)
		}

		if in.reschedules() {
			staffID := current.StaffID
			if in.StaffID != nil {
				staffID = *in.StaffID
			}
			serviceID := current.ServiceID
			if in.ServiceID != nil {
				serviceID = *in.ServiceID
			}
			start := current.StartTime
			if in.StartTime != nil {
				start = in.StartTime.UTC()
			}

			if err := r.reservations.LockStaff(ctx, staffID); err != nil {
				return err
			}
			services, err := resolveActiveServices(ctx, r.services, []uuid.UUID{serviceID})
			if err != nil {
				return err
			}
			if _, err := checkEligibility(ctx, r.staff, staffID, []uuid.UUID{serviceID}); err != nil {
				return err
			}

			tr, err := calendar.NewTimeRange(start.UTC(), start.UTC().Add(services[0].Duration()))
			if err != nil {
				return apperror.Validation(err.Error(),
					apperror.FieldError{Field: "startTime", Message: "must be a valid time"})
			}
			if current.Status.Occupies() {
				conflicts, err := r.reservations.FindOverlapping(ctx, staffID, tr, id)
				if err != nil {
					return err
				}
				if len(conflicts) > 0 {
					return errConflict
				}
			}

			fields["staff_id"] = staffID
			fields["service_id"] = serviceID
			fields["start_time"] = tr.Start
			fields["end_time"] = tr.End
		}

		if len(fields) == 0 {
			return nil
		}
		if err := r.reservations.Update(ctx, id, fields); err != nil {
			return err
		}

		updated, err := r.reservations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return r.events.Append(ctx, newEvent(model.EventTypeReservationUpdated, updated, ""))
	})
	if err != nil {
		return nil, storeErr(err, errReservationNotFound)
	}

	return s.Get(ctx, id)
}

// UpdateStatus выставляет любой из статусов. Выход из CANCELLED снова занимает
// время сотрудника, поэтому интервал перепроверяется на пересечения.
func (s *BookingService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReservationStatus) (_ *model.Reservation, err error) {
	ctx, span := s.startSpan(ctx, "UpdateStatus",
		attribute.String("reservation.id", id.String()),
		attribute.String("reservation.status", string(status)),
	)
	defer func() { endSpan(span, err) }()

	if !status.Valid() {
		return nil, apperror.Validation("invalid status",
			apperror.FieldError{Field: "status", Message: "must be one of PENDING, CONFIRMED, CANCELLED, COMPLETED"})
	}

	err = s.inTx(ctx, func(r txRepos) error {
		current, err := r.reservations.GetByID(ctx, id)
		if err != nil {
			return storeErr(err, errReservationNotFound)
		}
		if err := r.reservations.LockStaff(ctx, current.StaffID); err != nil {
			return err
		}

		if !current.Status.Occupies() && status.Occupies() {
			tr := calendar.TimeRange{Start: current.StartTime, End: current.EndTime}
			conflicts, err := r.reservations.FindOverlapping(ctx, current.StaffID, tr, id)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return errConflict
			}
		}

		fields := map[string]any{"status": status}
		switch {
		case status == model.ReservationStatusCancelled && current.CancelledAt == nil:
			fields["cancelled_at"] = s.now()
		case status != model.ReservationStatusCancelled:
			fields["cancelled_at"] = nil
		}
		if err := r.reservations.Update(ctx, id, fields); err != nil {
			return err
		}

		previous := current.Status
		current.Status = status
		return r.events.Append(ctx, newEvent(model.EventTypeReservationStatusChanged, current, previous))
	})
	if err != nil {
		return nil, storeErr(err, errReservationNotFound)
	}

	s.log.Info("reservation status changed",
		zap.String("reservation_id", id.String()),
		zap.String("status", string(status)),
	)
	return s.Get(ctx, id)
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, errReservationNotFound)
	}
	return res, nil
}

// List: постраничный список броней. Параметр date (YYYY-MM-DD) ограничивает
// начало брони сутками в часовом поясе бизнеса.
func (s *BookingService) List(ctx context.Context, opts query.Options) (_ query.Page[model.Reservation], err error) {
	ctx, span := s.startSpan(ctx, "List")
	defer func() { endSpan(span, err) }()

	var window *calendar.TimeRange
	if raw, ok := opts.Extra["date"]; ok {
		day, err := time.ParseInLocation(time.DateOnly, raw, s.hours.Location)
		if err != nil {
			return query.Page[model.Reservation]{}, apperror.Validation("invalid date",
				apperror.FieldError{Field: "date", Message: "must be YYYY-MM-DD"})
		}
		tr, err := storeWindow(day, day.AddDate(0, 0, 1))
		if err != nil {
			return query.Page[model.Reservation]{}, apperror.Internal(err)
		}
		window = &tr
	}

	items, total, err := s.reservations.List(ctx, opts, window)
	if err != nil {
		return query.Page[model.Reservation]{}, storeErr(err, nil)
	}
	return query.NewPage(items, opts, total), nil
}

// Availability возвращает свободные слоты сотрудника для услуги на дату day.
func (s *BookingService) Availability(
	ctx context.Context,
	staffID, serviceID uuid.UUID,
	day time.Time,
) (_ []calendar.TimeRange, err error) {
	ctx, span := s.startSpan(ctx, "Availability",
		attribute.String("staff.id", staffID.String()),
		attribute.String("service.id", serviceID.String()),
	)
	defer func() { endSpan(span, err) }()

	services, err := resolveActiveServices(ctx, s.services, []uuid.UUID{serviceID})
	if err != nil {
		return nil, storeErr(err, nil)
	}
	if _, err := checkEligibility(ctx, s.staff, staffID, []uuid.UUID{serviceID}); err != nil {
		return nil, storeErr(err, nil)
	}

	window, err := calendar.BusinessDay(day, s.hours.OpenHour, s.hours.CloseHour, s.hours.Location)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	stored, err := storeWindow(window.Start, window.End)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	booked, err := s.reservations.FindOverlapping(ctx, staffID, stored, uuid.Nil)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	busy := make([]calendar.TimeRange, 0, len(booked))
	for _, b := range booked {
		busy = append(busy, calendar.TimeRange{Start: b.StartTime, End: b.EndTime})
	}

	slots, err := calendar.FreeSlots(window, services[0].Duration(), s.hours.Step, busy, s.now())
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return slots, nil
}

// storeWindow приводит границы к UTC: в таком виде время лежит в БД,
// а sqlite сравнивает его как строки.
func storeWindow(start, end time.Time) (calendar.TimeRange, error) {
	return calendar.NormalizeTimeRange(start, end, time.UTC, 0)
}

// resolveActiveServices возвращает активные услуги в порядке ids.
func resolveActiveServices(ctx context.Context, repo repository.ServiceRepository, ids []uuid.UUID) ([]model.Service, error) {
	found, err := repo.ListActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, errServiceNotFound
	}

	byID := make(map[uuid.UUID]model.Service, len(found))
	for _, svc := range found {
		byID[svc.ID] = svc
	}
	ordered := make([]model.Service, 0, len(ids))
	for _, id := range ids {
		svc, ok := byID[id]
		if !ok {
			return nil, errServiceNotFound
		}
		ordered = append(ordered, svc)
	}
	return ordered, nil
}

// checkEligibility: сотрудник существует, активен и оказывает все услуги.
func checkEligibility(ctx context.Context, repo repository.StaffRepository, staffID uuid.UUID, serviceIDs []uuid.UUID) (*model.Staff, error) {
	staff, err := repo.GetByID(ctx, staffID)
	if err != nil {
		return nil, storeErr(err, errStaffNotFound)
	}
	if !staff.IsActive {
		return nil, errStaffInactive
	}

	provided, err := repo.ProvidedServiceIDs(ctx, staffID, serviceIDs)
	if err != nil {
		return nil, err
	}
	if len(provided) != len(serviceIDs) {
		return nil, errServiceNotProvided
	}
	return staff, nil
}

type eventPayload struct {
	ReservationID  uuid.UUID               `json:"reservationId"`
	StaffID        uuid.UUID               `json:"staffId"`
	ServiceID      uuid.UUID               `json:"serviceId"`
	CustomerName   string                  `json:"customerName"`
	StartTime      time.Time               `json:"startTime"`
	EndTime        time.Time               `json:"endTime"`
	Status         model.ReservationStatus `json:"status"`
	PreviousStatus model.ReservationStatus `json:"previousStatus,omitempty"`
}

func newEvent(t model.EventType, r *model.Reservation, previous model.ReservationStatus) *model.Event {
	payload, _ := json.Marshal(eventPayload{
		ReservationID:  r.ID,
		StaffID:        r.StaffID,
		ServiceID:      r.ServiceID,
		CustomerName:   r.CustomerName,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Status:         r.Status,
		PreviousStatus: previous,
	})
	return &model.Event{
		EventType:     t,
		ReservationID: r.ID,
		StaffID:       r.StaffID,
		Payload:       datatypes.JSON(payload),
	}
}

// uniqueIDs убирает повторы, сохраняя позицию первого вхождения.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
