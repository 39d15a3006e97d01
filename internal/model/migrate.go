package model

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrate выполняет миграцию всех сущностей ядра бронирования.
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&Staff{}, "Services", &StaffService{}); err != nil {
		return fmt.Errorf("setup join table staff.services: %w", err)
	}
	if err := db.SetupJoinTable(&Service{}, "Staff", &StaffService{}); err != nil {
		return fmt.Errorf("setup join table service.staff: %w", err)
	}

	if err := db.AutoMigrate(
		&Staff{},
		&Service{},
		&StaffService{},
		&Reservation{},
		&Event{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() == "postgres" {
		return migratePostgresConstraints(db)
	}
	return nil
}

// Страховка от двойной записи на уровне БД: пересечение интервалов
// одного сотрудника среди неотменённых броней запрещено.
func migratePostgresConstraints(db *gorm.DB) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		`DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'reservations_no_overlap'
			) THEN
				ALTER TABLE reservations
					ADD CONSTRAINT reservations_no_overlap
					EXCLUDE USING gist (
						staff_id WITH =,
						tstzrange(start_time, end_time, '[)') WITH &&
					) WHERE (status <> 'CANCELLED');
			END IF;
		END $$`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate constraints: %w", err)
		}
	}
	return nil
}
