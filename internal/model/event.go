package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события outbox.
type EventType string

const (
	EventTypeReservationCreated       EventType = "reservation.created"
	EventTypeReservationUpdated       EventType = "reservation.updated"
	EventTypeReservationStatusChanged EventType = "reservation.status_changed"
)

// outbox_events: события по броням, пишутся в той же транзакции, что и бронь,
// и публикуются relay-воркером.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	ReservationID uuid.UUID `gorm:"type:uuid;not null;index"`
	StaffID       uuid.UUID `gorm:"type:uuid;not null"`

	Payload datatypes.JSON

	CreatedAt   time.Time  `gorm:"not null;index"`
	PublishedAt *time.Time `gorm:"index"`
}

func (Event) TableName() string { return "outbox_events" }

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
