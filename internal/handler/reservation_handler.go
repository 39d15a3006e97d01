package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Leganyst/reservation-core/internal/apperror"
	"github.com/Leganyst/reservation-core/internal/calendar"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/query"
	"github.com/Leganyst/reservation-core/internal/repository"
	"github.com/Leganyst/reservation-core/internal/service"
)

type BookingAPI interface {
	Create(ctx context.Context, in service.CreateReservationInput) ([]model.Reservation, error)
	Update(ctx context.Context, id uuid.UUID, in service.UpdateReservationInput) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReservationStatus) (*model.Reservation, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	List(ctx context.Context, opts query.Options) (query.Page[model.Reservation], error)
	Availability(ctx context.Context, staffID, serviceID uuid.UUID, day time.Time) ([]calendar.TimeRange, error)
}

type ReservationHandler struct {
	booking BookingAPI
}

func NewReservationHandler(booking BookingAPI) *ReservationHandler {
	return &ReservationHandler{booking: booking}
}

func (h *ReservationHandler) List(c *gin.Context) {
	opts := query.Parse(c.Request.URL.Query(), repository.ReservationListSpec.EntitySpec)
	page, err := h.booking.List(c.Request.Context(), opts)
	if err != nil {
		Fail(c, err)
		return
	}
	out := query.Map(page, toReservationResponse)
	Paged(c, out.Items, out.Meta)
}

func (h *ReservationHandler) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	res, err := h.booking.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, toReservationResponse(*res))
}

// Create принимает либо serviceId (одна бронь), либо serviceIds (цепочка).
// Для serviceId в ответе объект, для serviceIds: массив в порядке цепочки.
func (h *ReservationHandler) Create(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindingError(err))
		return
	}

	chained := len(req.ServiceIDs) > 0
	if chained == (req.ServiceID != nil) {
		Fail(c, apperror.Validation("exactly one of serviceId or serviceIds is required",
			apperror.FieldError{Field: "serviceId", Message: "exactly one of serviceId or serviceIds is required"}))
		return
	}
	ids := req.ServiceIDs
	if !chained {
		ids = []uuid.UUID{*req.ServiceID}
	}

	created, err := h.booking.Create(c.Request.Context(), service.CreateReservationInput{
		StaffID:       req.StaffID,
		ServiceIDs:    ids,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		StartTime:     req.StartTime,
		Notes:         req.Notes,
	})
	if err != nil {
		Fail(c, err)
		return
	}

	if !chained {
		Created(c, toReservationResponse(created[0]))
		return
	}
	out := make([]reservationResponse, 0, len(created))
	for _, r := range created {
		out = append(out, toReservationResponse(r))
	}
	Created(c, out)
}

func (h *ReservationHandler) Update(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	var req updateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindingError(err))
		return
	}

	res, err := h.booking.Update(c.Request.Context(), id, service.UpdateReservationInput{
		StaffID:       req.StaffID,
		ServiceID:     req.ServiceID,
		StartTime:     req.StartTime,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, toReservationResponse(*res))
}

func (h *ReservationHandler) UpdateStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindingError(err))
		return
	}

	res, err := h.booking.UpdateStatus(c.Request.Context(), id, model.ReservationStatus(req.Status))
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, toReservationResponse(*res))
}

// Availability: свободные начала для услуги у сотрудника на дату.
func (h *ReservationHandler) Availability(c *gin.Context) {
	staffID, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		Fail(c, bindingError(err))
		return
	}
	serviceID, err := parseID(q.ServiceID, "serviceId")
	if err != nil {
		Fail(c, err)
		return
	}
	day, err := time.Parse(time.DateOnly, q.Date)
	if err != nil {
		Fail(c, apperror.Validation("invalid date", apperror.FieldError{Field: "date", Message: "must be YYYY-MM-DD"}))
		return
	}

	slots, err := h.booking.Availability(c.Request.Context(), staffID, serviceID, day)
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, availabilityResponse{
		StaffID:   staffID,
		ServiceID: serviceID,
		Date:      q.Date,
		Slots:     toSlots(slots),
	})
}
