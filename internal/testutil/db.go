// Package testutil поднимает SQLite-базу в памяти и заполняет её данными для тестов.
package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/config"
	"github.com/Leganyst/reservation-core/internal/db"
	"github.com/Leganyst/reservation-core/internal/model"
)

// NewDB открывает отдельную in-memory SQLite со схемой ядра.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.NewGormDB(config.DBConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: ":memory:",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func SeedService(t testing.TB, gdb *gorm.DB, name string, minutes int) *model.Service {
	t.Helper()

	s := &model.Service{
		Name:            name,
		DurationMinutes: minutes,
		Price:           100,
		IsActive:        true,
	}
	if err := gdb.Create(s).Error; err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return s
}

// SeedStaff создаёт активного сотрудника и связывает его с услугами.
func SeedStaff(t testing.TB, gdb *gorm.DB, firstName string, services ...*model.Service) *model.Staff {
	t.Helper()

	st := &model.Staff{
		FirstName:      firstName,
		LastName:       "Test",
		Specialization: "general",
		IsActive:       true,
	}
	if err := gdb.Omit("Services").Create(st).Error; err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	for _, s := range services {
		link := model.StaffService{StaffID: st.ID, ServiceID: s.ID}
		if err := gdb.Omit("Staff", "Service").Create(&link).Error; err != nil {
			t.Fatalf("seed staff service: %v", err)
		}
	}
	return st
}

func SeedReservation(
	t testing.TB,
	gdb *gorm.DB,
	staffID, serviceID uuid.UUID,
	start, end time.Time,
	status model.ReservationStatus,
) *model.Reservation {
	t.Helper()

	r := &model.Reservation{
		StaffID:      staffID,
		ServiceID:    serviceID,
		CustomerName: "Seed Customer",
		StartTime:    start.UTC(),
		EndTime:      end.UTC(),
		Status:       status,
	}
	if err := gdb.Omit("Staff", "Service").Create(r).Error; err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	return r
}

// Deactivate выставляет is_active=false.
func Deactivate(t testing.TB, gdb *gorm.DB, m any, id uuid.UUID) {
	t.Helper()
	if err := gdb.Model(m).Where("id = ?", id).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
}

// Day: фиксированная дата в будущем для тестов.
func Day(hour, minute int) time.Time {
	return time.Date(2030, time.March, 4, hour, minute, 0, 0, time.UTC)
}
