package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// services
type Service struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name string `gorm:"type:varchar(200);not null"`

	// Длительность в минутах; конец брони = начало + DurationMinutes на момент записи.
	DurationMinutes int `gorm:"not null"`

	Price float64 `gorm:"type:numeric(10,2);not null"`

	// Цвет для календаря в формате #RRGGBB / #RGB.
	Color *string `gorm:"type:varchar(7)"`

	IsActive bool `gorm:"not null;index"`

	// Произвольные бизнес-поля, не входящие в фиксированную схему.
	Attributes datatypes.JSONMap

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`

	// Навигация many2many
	Staff []Staff `gorm:"many2many:staff_services;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (s *Service) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Duration возвращает длительность услуги как time.Duration.
func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// staff_services: кастомная join-таблица многие-ко-многим.
// Составной PK гарантирует не более одной связи на пару (staff, service).
type StaffService struct {
	StaffID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	ServiceID uuid.UUID `gorm:"type:uuid;primaryKey;index"`

	CreatedAt time.Time `gorm:"not null"`

	Staff   *Staff   `gorm:"foreignKey:StaffID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Service *Service `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (StaffService) TableName() string { return "staff_services" }
