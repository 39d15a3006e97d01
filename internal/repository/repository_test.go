package repository

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/reservation-core/internal/calendar"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/query"
	"github.com/Leganyst/reservation-core/internal/testutil"
)

func parse(t *testing.T, raw string, spec ListSpec) query.Options {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return query.Parse(v, spec.EntitySpec)
}

func TestReservationRepository_FindOverlapping(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewGormReservationRepository(gdb)

	svc := testutil.SeedService(t, gdb, "Haircut", 30)
	staff := testutil.SeedStaff(t, gdb, "Anna", svc)
	other := testutil.SeedStaff(t, gdb, "Olga", svc)

	existing := testutil.SeedReservation(t, gdb, staff.ID, svc.ID,
		testutil.Day(10, 0), testutil.Day(10, 30), model.ReservationStatusConfirmed)
	testutil.SeedReservation(t, gdb, staff.ID, svc.ID,
		testutil.Day(12, 0), testutil.Day(12, 30), model.ReservationStatusCancelled)
	testutil.SeedReservation(t, gdb, other.ID, svc.ID,
		testutil.Day(10, 0), testutil.Day(10, 30), model.ReservationStatusPending)

	cases := []struct {
		name       string
		start, end time.Time
		exclude    uuid.UUID
		want       int
	}{
		{"overlapping", testutil.Day(10, 15), testutil.Day(10, 45), uuid.Nil, 1},
		{"touching end", testutil.Day(10, 30), testutil.Day(11, 0), uuid.Nil, 0},
		{"touching start", testutil.Day(9, 30), testutil.Day(10, 0), uuid.Nil, 0},
		{"cancelled ignored", testutil.Day(12, 0), testutil.Day(12, 30), uuid.Nil, 0},
		{"self excluded", testutil.Day(10, 0), testutil.Day(10, 30), existing.ID, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.FindOverlapping(ctx, staff.ID, calendar.TimeRange{Start: tc.start, End: tc.end}, tc.exclude)
			require.NoError(t, err)
			assert.Len(t, got, tc.want)
		})
	}
}

func TestReservationRepository_ListPaginationAndFilters(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewGormReservationRepository(gdb)

	svc := testutil.SeedService(t, gdb, "Massage", 30)
	staff := testutil.SeedStaff(t, gdb, "Anna", svc)

	start := testutil.Day(0, 0)
	for i := 0; i < 25; i++ {
		s := start.Add(time.Duration(i) * time.Hour)
		status := model.ReservationStatusPending
		if i%5 == 0 {
			status = model.ReservationStatusCancelled
		}
		testutil.SeedReservation(t, gdb, staff.ID, svc.ID, s, s.Add(30*time.Minute), status)
	}

	items, total, err := repo.List(ctx, parse(t, "page=3&limit=10", ReservationListSpec), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)
	assert.Len(t, items, 5)
	assert.Equal(t, 3, query.NewMeta(3, 10, total).TotalPages)
	// сортировка по умолчанию: startTime asc
	assert.True(t, items[0].StartTime.Before(items[1].StartTime))
	require.NotNil(t, items[0].Service)
	assert.Equal(t, "Massage", items[0].Service.Name)

	_, total, err = repo.List(ctx, parse(t, "status=CANCELLED", ReservationListSpec), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)

	_, total, err = repo.List(ctx, parse(t, "filters[status]=PENDING,CANCELLED&staffId="+staff.ID.String(), ReservationListSpec), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)

	window := calendar.TimeRange{Start: start, End: start.Add(24 * time.Hour)}
	_, total, err = repo.List(ctx, parse(t, "", ReservationListSpec), &window)
	require.NoError(t, err)
	assert.EqualValues(t, 24, total)

	_, _, err = repo.List(ctx, parse(t, "staffId=not-a-uuid", ReservationListSpec), nil)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestReservationRepository_SearchAcrossRelations(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewGormReservationRepository(gdb)

	cut := testutil.SeedService(t, gdb, "Beard Trim", 30)
	color := testutil.SeedService(t, gdb, "Coloring", 60)
	anna := testutil.SeedStaff(t, gdb, "Anna", cut, color)

	testutil.SeedReservation(t, gdb, anna.ID, cut.ID, testutil.Day(9, 0), testutil.Day(9, 30), model.ReservationStatusPending)
	testutil.SeedReservation(t, gdb, anna.ID, color.ID, testutil.Day(11, 0), testutil.Day(12, 0), model.ReservationStatusPending)

	_, total, err := repo.List(ctx, parse(t, "search=beard", ReservationListSpec), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = repo.List(ctx, parse(t, "q=ANNA", ReservationListSpec), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	// % экранируется и не работает как шаблон
	_, total, err = repo.List(ctx, parse(t, "search="+url.QueryEscape("%"), ReservationListSpec), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestStaffRepository_AssignServicesReplacesAll(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewGormStaffRepository(gdb)

	a := testutil.SeedService(t, gdb, "A", 30)
	b := testutil.SeedService(t, gdb, "B", 30)
	c := testutil.SeedService(t, gdb, "C", 30)
	staff := testutil.SeedStaff(t, gdb, "Anna", a, b)

	require.NoError(t, repo.AssignServices(ctx, staff.ID, []uuid.UUID{c.ID, c.ID, b.ID}))

	got, err := repo.GetWithServices(ctx, staff.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(got.Services))
	for _, s := range got.Services {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"B", "C"}, names)

	provided, err := repo.ProvidedServiceIDs(ctx, staff.ID, []uuid.UUID{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{b.ID, c.ID}, provided)
}

func TestStaffRepository_ListDefaultsToActive(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewGormStaffRepository(gdb)

	nails := testutil.SeedService(t, gdb, "Nails", 45)
	testutil.SeedStaff(t, gdb, "Anna", nails)
	inactive := testutil.SeedStaff(t, gdb, "Boris")
	testutil.Deactivate(t, gdb, &model.Staff{}, inactive.ID)

	items, total, err := repo.List(ctx, parse(t, "", StaffListSpec))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Anna", items[0].FirstName)
	assert.Len(t, items[0].Services, 1)

	_, total, err = repo.List(ctx, parse(t, "isActive=false", StaffListSpec))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = repo.List(ctx, parse(t, "isActive=true,false", StaffListSpec))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, total, err = repo.List(ctx, parse(t, "search=nail", StaffListSpec))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, _, err = repo.List(ctx, parse(t, "isActive=maybe", StaffListSpec))
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestServiceRepository_ListSortAndActive(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewGormServiceRepository(gdb)

	for i, minutes := range []int{60, 15, 30} {
		testutil.SeedService(t, gdb, fmt.Sprintf("svc-%d", i), minutes)
	}
	off := testutil.SeedService(t, gdb, "retired", 5)
	testutil.Deactivate(t, gdb, &model.Service{}, off.ID)

	items, total, err := repo.List(ctx, parse(t, "sortBy=durationMinutes&sortOrder=ascend", ServiceListSpec))
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 3)
	assert.Equal(t, []int{15, 30, 60}, []int{items[0].DurationMinutes, items[1].DurationMinutes, items[2].DurationMinutes})

	active, err := repo.ListActiveByIDs(ctx, []uuid.UUID{off.ID, items[0].ID})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, items[0].ID, active[0].ID)
}

func TestEventRepository_Outbox(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewGormEventRepository(gdb)

	first := &model.Event{EventType: model.EventTypeReservationCreated, ReservationID: uuid.New(), StaffID: uuid.New()}
	second := &model.Event{EventType: model.EventTypeReservationUpdated, ReservationID: uuid.New(), StaffID: uuid.New()}
	require.NoError(t, repo.Append(ctx, first, second))

	pending, err := repo.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, repo.MarkPublished(ctx, []uuid.UUID{first.ID}, time.Now().UTC()))

	pending, err = repo.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}
