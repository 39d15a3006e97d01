package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Staff: сотрудник, оказывающий услуги (мастер, консультант и т.п.).
// Не удаляется физически: деактивация через IsActive.
type Staff struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	FirstName      string `gorm:"type:varchar(100);not null"`
	LastName       string `gorm:"type:varchar(100);not null"`
	Specialization string `gorm:"type:varchar(200);not null"`

	IsActive bool `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`

	// Навигация many2many через staff_services.
	Services []Service `gorm:"many2many:staff_services;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (Staff) TableName() string { return "staff" }

func (s *Staff) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
