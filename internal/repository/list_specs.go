package repository

import (
	"github.com/Leganyst/reservation-core/internal/query"
)

var ReservationListSpec = ListSpec{
	EntitySpec: query.EntitySpec{
		Filterable:  []string{"staffId", "serviceId", "status"},
		Sortable:    []string{"startTime", "endTime", "createdAt", "updatedAt", "customerName", "status"},
		Searchable:  []string{"customerName", "customerPhone", "notes", "service.name", "staff.firstName", "staff.lastName"},
		DefaultSort: query.Sort{Field: "startTime"},
		Extras:      []string{"date"},
	},
	Table: "reservations",
	Fields: map[string]Field{
		"staffId":       {Column: "reservations.staff_id", Type: FieldUUID},
		"serviceId":     {Column: "reservations.service_id", Type: FieldUUID},
		"status":        {Column: "reservations.status"},
		"customerName":  {Column: "reservations.customer_name"},
		"customerPhone": {Column: "reservations.customer_phone"},
		"notes":         {Column: "reservations.notes"},
		"startTime":     {Column: "reservations.start_time", Type: FieldOther},
		"endTime":       {Column: "reservations.end_time", Type: FieldOther},
		"createdAt":     {Column: "reservations.created_at", Type: FieldOther},
		"updatedAt":     {Column: "reservations.updated_at", Type: FieldOther},
	},
	Relations: map[string]Relation{
		"service": {
			LocalKey: "reservations.service_id",
			Select:   "services.id",
			From:     "services",
			Columns:  map[string]string{"name": "services.name"},
		},
		"staff": {
			LocalKey: "reservations.staff_id",
			Select:   "staff.id",
			From:     "staff",
			Columns: map[string]string{
				"firstName": "staff.first_name",
				"lastName":  "staff.last_name",
			},
		},
	},
}

var ServiceListSpec = ListSpec{
	EntitySpec: query.EntitySpec{
		Filterable:     []string{"isActive"},
		Sortable:       []string{"name", "durationMinutes", "price", "createdAt", "updatedAt"},
		Searchable:     []string{"name"},
		DefaultSort:    query.Sort{Field: "createdAt", Desc: true},
		DefaultFilters: map[string]any{"isActive": true},
	},
	Table: "services",
	Fields: map[string]Field{
		"isActive":        {Column: "services.is_active", Type: FieldBool},
		"name":            {Column: "services.name"},
		"durationMinutes": {Column: "services.duration_minutes", Type: FieldOther},
		"price":           {Column: "services.price", Type: FieldOther},
		"createdAt":       {Column: "services.created_at", Type: FieldOther},
		"updatedAt":       {Column: "services.updated_at", Type: FieldOther},
	},
}

var StaffListSpec = ListSpec{
	EntitySpec: query.EntitySpec{
		Filterable:     []string{"isActive"},
		Sortable:       []string{"firstName", "lastName", "specialization", "createdAt", "updatedAt"},
		Searchable:     []string{"firstName", "lastName", "specialization", "services.name"},
		DefaultSort:    query.Sort{Field: "createdAt", Desc: true},
		DefaultFilters: map[string]any{"isActive": true},
	},
	Table: "staff",
	Fields: map[string]Field{
		"isActive":       {Column: "staff.is_active", Type: FieldBool},
		"firstName":      {Column: "staff.first_name"},
		"lastName":       {Column: "staff.last_name"},
		"specialization": {Column: "staff.specialization"},
		"createdAt":      {Column: "staff.created_at", Type: FieldOther},
		"updatedAt":      {Column: "staff.updated_at", Type: FieldOther},
	},
	Relations: map[string]Relation{
		"services": {
			LocalKey: "staff.id",
			Select:   "staff_services.staff_id",
			From:     "staff_services JOIN services ON services.id = staff_services.service_id",
			Columns:  map[string]string{"name": "services.name"},
		},
	},
}
