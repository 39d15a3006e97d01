package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusCompleted ReservationStatus = "COMPLETED"
)

var ReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusCancelled,
	ReservationStatusCompleted,
}

func (s ReservationStatus) Valid() bool {
	for _, st := range ReservationStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Occupies сообщает, занимает ли бронь время сотрудника.
func (s ReservationStatus) Occupies() bool {
	return s != ReservationStatusCancelled
}

// reservations
type Reservation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	StaffID   uuid.UUID `gorm:"type:uuid;not null;index:idx_reservations_staff_start,priority:1"`
	ServiceID uuid.UUID `gorm:"type:uuid;not null;index"`

	CustomerName  string  `gorm:"type:varchar(200);not null"`
	CustomerPhone *string `gorm:"type:varchar(50)"`

	// Полуоткрытый интервал [StartTime, EndTime).
	StartTime time.Time `gorm:"not null;index:idx_reservations_staff_start,priority:2"`
	EndTime   time.Time `gorm:"not null"`

	Notes *string `gorm:"type:text"`

	Status      ReservationStatus `gorm:"type:varchar(16);not null;index"`
	CancelledAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Staff   *Staff   `gorm:"foreignKey:StaffID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Service *Service `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = ReservationStatusPending
	}
	return nil
}
