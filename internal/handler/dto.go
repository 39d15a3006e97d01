package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/reservation-core/internal/calendar"
	"github.com/Leganyst/reservation-core/internal/model"
)

// ===== Requests =====

type createReservationRequest struct {
	StaffID       uuid.UUID   `json:"staffId" binding:"required"`
	ServiceID     *uuid.UUID  `json:"serviceId"`
	ServiceIDs    []uuid.UUID `json:"serviceIds" binding:"omitempty,min=1"`
	CustomerName  string      `json:"customerName" binding:"required,min=1,max=200"`
	CustomerPhone *string     `json:"customerPhone" binding:"omitempty,max=50"`
	StartTime     time.Time   `json:"startTime" binding:"required,future"`
	Notes         *string     `json:"notes" binding:"omitempty,max=500"`
}

type updateReservationRequest struct {
	StaffID       *uuid.UUID `json:"staffId"`
	ServiceID     *uuid.UUID `json:"serviceId"`
	CustomerName  *string    `json:"customerName" binding:"omitempty,min=1,max=200"`
	CustomerPhone *string    `json:"customerPhone" binding:"omitempty,max=50"`
	StartTime     *time.Time `json:"startTime" binding:"omitempty,future"`
	Notes         *string    `json:"notes" binding:"omitempty,max=500"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING CONFIRMED CANCELLED COMPLETED"`
}

type createServiceRequest struct {
	Name            string         `json:"name" binding:"required,min=1,max=200"`
	DurationMinutes int            `json:"durationMinutes" binding:"required,min=5,max=480"`
	Price           float64        `json:"price" binding:"required,gt=0,price"`
	Color           *string        `json:"color" binding:"omitempty,rgbhex"`
	Attributes      map[string]any `json:"attributes"`
}

type updateServiceRequest struct {
	Name            *string        `json:"name" binding:"omitempty,min=1,max=200"`
	DurationMinutes *int           `json:"durationMinutes" binding:"omitempty,min=5,max=480"`
	Price           *float64       `json:"price" binding:"omitempty,gt=0,price"`
	Color           *string        `json:"color" binding:"omitempty,rgbhex"`
	IsActive        *bool          `json:"isActive"`
	Attributes      map[string]any `json:"attributes"`
}

// Поля услуги с фиксированной схемой; остальные ключи тела: пользовательские атрибуты.
var serviceKnownFields = []string{
	"id", "name", "durationMinutes", "price", "color", "isActive",
	"attributes", "createdAt", "updatedAt", "staff",
}

type createStaffRequest struct {
	FirstName      string      `json:"firstName" binding:"required,min=1,max=100"`
	LastName       string      `json:"lastName" binding:"required,min=1,max=100"`
	Specialization string      `json:"specialization" binding:"required,min=1,max=200"`
	Services       []uuid.UUID `json:"services"`
}

type updateStaffRequest struct {
	FirstName      *string `json:"firstName" binding:"omitempty,min=1,max=100"`
	LastName       *string `json:"lastName" binding:"omitempty,min=1,max=100"`
	Specialization *string `json:"specialization" binding:"omitempty,min=1,max=200"`
	IsActive       *bool   `json:"isActive"`
}

type assignServicesRequest struct {
	ServiceIDs []uuid.UUID `json:"serviceIds" binding:"required,min=1"`
}

type availabilityQuery struct {
	ServiceID string `form:"serviceId" binding:"required,uuid"`
	Date      string `form:"date" binding:"required,datetime=2006-01-02"`
}

// ===== Responses =====

type staffSummary struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Specialization string    `json:"specialization"`
	IsActive       bool      `json:"isActive"`
}

type serviceSummary struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"durationMinutes"`
	Price           float64   `json:"price"`
	Color           *string   `json:"color,omitempty"`
	IsActive        bool      `json:"isActive"`
}

type staffResponse struct {
	staffSummary
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Services  []serviceSummary `json:"services"`
}

type reservationResponse struct {
	ID            uuid.UUID               `json:"id"`
	StaffID       uuid.UUID               `json:"staffId"`
	ServiceID     uuid.UUID               `json:"serviceId"`
	CustomerName  string                  `json:"customerName"`
	CustomerPhone *string                 `json:"customerPhone"`
	StartTime     time.Time               `json:"startTime"`
	EndTime       time.Time               `json:"endTime"`
	Notes         *string                 `json:"notes"`
	Status        model.ReservationStatus `json:"status"`
	CancelledAt   *time.Time              `json:"cancelledAt"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
	Staff         *staffSummary           `json:"staff,omitempty"`
	Service       *serviceSummary         `json:"service,omitempty"`
}

type slotResponse struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type availabilityResponse struct {
	StaffID   uuid.UUID      `json:"staffId"`
	ServiceID uuid.UUID      `json:"serviceId"`
	Date      string         `json:"date"`
	Slots     []slotResponse `json:"slots"`
}

func toStaffSummary(s *model.Staff) *staffSummary {
	if s == nil {
		return nil
	}
	return &staffSummary{
		ID:             s.ID,
		FirstName:      s.FirstName,
		LastName:       s.LastName,
		Specialization: s.Specialization,
		IsActive:       s.IsActive,
	}
}

func toServiceSummary(s *model.Service) *serviceSummary {
	if s == nil {
		return nil
	}
	return &serviceSummary{
		ID:              s.ID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price,
		Color:           s.Color,
		IsActive:        s.IsActive,
	}
}

func toStaffResponse(s model.Staff) staffResponse {
	services := make([]serviceSummary, 0, len(s.Services))
	for i := range s.Services {
		services = append(services, *toServiceSummary(&s.Services[i]))
	}
	return staffResponse{
		staffSummary: *toStaffSummary(&s),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Services:     services,
	}
}

func toReservationResponse(r model.Reservation) reservationResponse {
	return reservationResponse{
		ID:            r.ID,
		StaffID:       r.StaffID,
		ServiceID:     r.ServiceID,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Notes:         r.Notes,
		Status:        r.Status,
		CancelledAt:   r.CancelledAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Staff:         toStaffSummary(r.Staff),
		Service:       toServiceSummary(r.Service),
	}
}

// toServiceResponse раскладывает пользовательские атрибуты на верхний уровень JSON.
// Поля схемы имеют приоритет над одноимёнными атрибутами.
func toServiceResponse(s model.Service, withStaff bool) map[string]any {
	out := make(map[string]any, len(s.Attributes)+10)
	for k, v := range s.Attributes {
		out[k] = v
	}
	out["id"] = s.ID
	out["name"] = s.Name
	out["durationMinutes"] = s.DurationMinutes
	out["price"] = s.Price
	out["color"] = s.Color
	out["isActive"] = s.IsActive
	out["createdAt"] = s.CreatedAt
	out["updatedAt"] = s.UpdatedAt

	if withStaff {
		staff := make([]staffSummary, 0, len(s.Staff))
		for i := range s.Staff {
			staff = append(staff, *toStaffSummary(&s.Staff[i]))
		}
		out["staff"] = staff
	}
	return out
}

func toSlots(ranges []calendar.TimeRange) []slotResponse {
	out := make([]slotResponse, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, slotResponse{StartTime: r.Start, EndTime: r.End})
	}
	return out
}

// extractAttributes собирает пользовательские поля из тела запроса:
// явный объект attributes плюс все ключи вне схемы.
func extractAttributes(raw []byte, explicit map[string]any) (map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	attrs := make(map[string]any, len(explicit))
	for k, v := range explicit {
		attrs[k] = v
	}
	for _, k := range serviceKnownFields {
		delete(body, k)
	}
	for k, v := range body {
		attrs[k] = v
	}
	return attrs, nil
}
