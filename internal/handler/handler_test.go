package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/apperror"
	"github.com/Leganyst/reservation-core/internal/middleware"
	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/service"
	"github.com/Leganyst/reservation-core/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Meta    map[string]int  `json:"meta"`
	Error   *ErrorData      `json:"error"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gdb := testutil.NewDB(t)
	booking := service.NewBookingService(gdb, service.BusinessHours{OpenHour: 9, CloseHour: 18, Step: 15 * time.Minute}, nil)
	r := NewRouter(Deps{
		Booking:        booking,
		Catalog:        service.NewCatalogService(gdb, nil),
		Idempotency:    middleware.NewMemoryIdempotencyStore(),
		IdempotencyTTL: time.Hour,
	})
	return r, gdb
}

func call(t *testing.T, r http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func reservationBody(staffID, serviceField, start string) string {
	return `{"staffId":"` + staffID + `",` + serviceField + `,"customerName":"Ann","startTime":"` + start + `"}`
}

func TestReservations_CreateSingleAndConflict(t *testing.T) {
	r, gdb := newTestRouter(t)
	x := testutil.SeedService(t, gdb, "X", 30)
	s := testutil.SeedStaff(t, gdb, "S", x)
	testutil.SeedReservation(t, gdb, s.ID, x.ID, testutil.Day(10, 0), testutil.Day(10, 30), model.ReservationStatusConfirmed)

	w, env := call(t, r, http.MethodPost, "/api/v1/reservations",
		reservationBody(s.ID.String(), `"serviceId":"`+x.ID.String()+`"`, "2030-03-04T10:15:00Z"))
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperror.CodeConflict, env.Error.Code)

	w, env = call(t, r, http.MethodPost, "/api/v1/reservations",
		reservationBody(s.ID.String(), `"serviceId":"`+x.ID.String()+`"`, "2030-03-04T10:30:00Z"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got reservationResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, testutil.Day(10, 30), got.StartTime.UTC())
	assert.Equal(t, testutil.Day(11, 0), got.EndTime.UTC())
	assert.Equal(t, model.ReservationStatusPending, got.Status)
	require.NotNil(t, got.Staff)
	require.NotNil(t, got.Service)
	assert.Equal(t, "X", got.Service.Name)
}

func TestReservations_CreateChainReturnsArray(t *testing.T) {
	r, gdb := newTestRouter(t)
	a := testutil.SeedService(t, gdb, "A", 30)
	b := testutil.SeedService(t, gdb, "B", 45)
	s := testutil.SeedStaff(t, gdb, "S", a, b)

	w, env := call(t, r, http.MethodPost, "/api/v1/reservations",
		reservationBody(s.ID.String(), `"serviceIds":["`+a.ID.String()+`","`+b.ID.String()+`"]`, "2030-03-04T10:00:00Z"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got []reservationResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, got[0].EndTime, got[1].StartTime)
	assert.Equal(t, testutil.Day(11, 15), got[1].EndTime.UTC())
}

func TestReservations_CreateValidation(t *testing.T) {
	r, gdb := newTestRouter(t)
	x := testutil.SeedService(t, gdb, "X", 30)
	s := testutil.SeedStaff(t, gdb, "S", x)

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "both service forms",
			body:  reservationBody(s.ID.String(), `"serviceId":"`+x.ID.String()+`","serviceIds":["`+x.ID.String()+`"]`, "2030-03-04T10:00:00Z"),
			field: "serviceId",
		},
		{
			name:  "no service",
			body:  reservationBody(s.ID.String(), `"notes":"x"`, "2030-03-04T10:00:00Z"),
			field: "serviceId",
		},
		{
			name:  "start in the past",
			body:  reservationBody(s.ID.String(), `"serviceId":"`+x.ID.String()+`"`, "2001-01-01T10:00:00Z"),
			field: "startTime",
		},
		{
			name:  "missing customer",
			body:  `{"staffId":"` + s.ID.String() + `","serviceId":"` + x.ID.String() + `","startTime":"2030-03-04T10:00:00Z"}`,
			field: "customerName",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := call(t, r, http.MethodPost, "/api/v1/reservations", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, apperror.CodeValidation, env.Error.Code)
			require.NotEmpty(t, env.Error.Details)
			assert.Equal(t, tc.field, env.Error.Details[0].Field)
		})
	}

	w, env := call(t, r, http.MethodPost, "/api/v1/reservations", `{"staffId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, env.Error.Code)
}

func TestReservations_IdempotentCreate(t *testing.T) {
	r, gdb := newTestRouter(t)
	x := testutil.SeedService(t, gdb, "X", 30)
	s := testutil.SeedStaff(t, gdb, "S", x)
	body := reservationBody(s.ID.String(), `"serviceId":"`+x.ID.String()+`"`, "2030-03-04T12:00:00Z")

	first, _ := call(t, r, http.MethodPost, "/api/v1/reservations", body, middleware.IdempotencyKeyHeader, "k-1")
	second, _ := call(t, r, http.MethodPost, "/api/v1/reservations", body, middleware.IdempotencyKeyHeader, "k-1")

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	var n int64
	require.NoError(t, gdb.Model(&model.Reservation{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestReservations_StatusAndList(t *testing.T) {
	r, gdb := newTestRouter(t)
	x := testutil.SeedService(t, gdb, "X", 30)
	s := testutil.SeedStaff(t, gdb, "S", x)
	res := testutil.SeedReservation(t, gdb, s.ID, x.ID, testutil.Day(10, 0), testutil.Day(10, 30), model.ReservationStatusPending)
	testutil.SeedReservation(t, gdb, s.ID, x.ID, testutil.Day(10, 0).Add(24*time.Hour), testutil.Day(10, 30).Add(24*time.Hour), model.ReservationStatusPending)

	w, env := call(t, r, http.MethodPatch, "/api/v1/reservations/"+res.ID.String()+"/status", `{"status":"UNKNOWN"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "status", env.Error.Details[0].Field)

	w, env = call(t, r, http.MethodPatch, "/api/v1/reservations/"+res.ID.String()+"/status", `{"status":"CANCELLED"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got reservationResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, model.ReservationStatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)

	w, env = call(t, r, http.MethodGet, "/api/v1/reservations?date=2030-03-04&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var items []reservationResponse
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, res.ID, items[0].ID)
	assert.Equal(t, map[string]int{"page": 1, "limit": 5, "total": 1, "totalPages": 1}, env.Meta)

	w, env = call(t, r, http.MethodGet, "/api/v1/reservations?status=CANCELLED,PENDING&sort=startTime:desc", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, env.Meta["total"])
}

func TestReservations_GetAndUpdate(t *testing.T) {
	r, gdb := newTestRouter(t)
	x := testutil.SeedService(t, gdb, "X", 30)
	s := testutil.SeedStaff(t, gdb, "S", x)
	res := testutil.SeedReservation(t, gdb, s.ID, x.ID, testutil.Day(10, 0), testutil.Day(10, 30), model.ReservationStatusPending)

	w, env := call(t, r, http.MethodGet, "/api/v1/reservations/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, env.Error.Code)

	w, env = call(t, r, http.MethodGet, "/api/v1/reservations/00000000-0000-0000-0000-000000000001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeReservationNotFound, env.Error.Code)

	w, env = call(t, r, http.MethodPut, "/api/v1/reservations/"+res.ID.String(),
		`{"startTime":"2030-03-04T14:00:00Z","customerName":"Bob"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got reservationResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Bob", got.CustomerName)
	assert.Equal(t, testutil.Day(14, 30), got.EndTime.UTC())
}

func TestServices_AttributesRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := call(t, r, http.MethodPost, "/api/v1/services",
		`{"name":"Massage","durationMinutes":60,"price":40.5,"color":"#A1B2C3","room":"blue","attributes":{"level":2}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "blue", created["room"])
	assert.EqualValues(t, 2, created["level"])
	assert.Equal(t, "Massage", created["name"])
	id := created["id"].(string)

	w, env = call(t, r, http.MethodPut, "/api/v1/services/"+id, `{"room":null,"floor":3,"name":"Deep massage"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.NotContains(t, updated, "room")
	assert.EqualValues(t, 3, updated["floor"])
	assert.EqualValues(t, 2, updated["level"])
	assert.Equal(t, "Deep massage", updated["name"])
	assert.Contains(t, updated, "staff")

	w, env = call(t, r, http.MethodPost, "/api/v1/services", `{"name":"Bad","durationMinutes":3,"price":1.234,"color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields := make([]string, 0, len(env.Error.Details))
	for _, d := range env.Error.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"durationMinutes", "price", "color"}, fields)

	w, _ = call(t, r, http.MethodDelete, "/api/v1/services/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = call(t, r, http.MethodGet, "/api/v1/services", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Meta["total"])
}

func TestStaff_CreateAssignAndAvailability(t *testing.T) {
	r, gdb := newTestRouter(t)
	a := testutil.SeedService(t, gdb, "A", 30)
	b := testutil.SeedService(t, gdb, "B", 60)

	w, env := call(t, r, http.MethodPost, "/api/v1/staff",
		`{"firstName":"Eva","lastName":"Stone","specialization":"Massage","services":["`+a.ID.String()+`"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var st staffResponse
	require.NoError(t, json.Unmarshal(env.Data, &st))
	require.Len(t, st.Services, 1)
	assert.True(t, st.IsActive)

	w, env = call(t, r, http.MethodPost, "/api/v1/staff/"+st.ID.String()+"/services", `{"serviceIds":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "serviceIds", env.Error.Details[0].Field)

	w, env = call(t, r, http.MethodPost, "/api/v1/staff/"+st.ID.String()+"/services",
		`{"serviceIds":["`+b.ID.String()+`","`+b.ID.String()+`"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &st))
	require.Len(t, st.Services, 1)
	assert.Equal(t, b.ID, st.Services[0].ID)

	testutil.SeedReservation(t, gdb, st.ID, b.ID, testutil.Day(10, 0), testutil.Day(11, 0), model.ReservationStatusConfirmed)

	w, env = call(t, r, http.MethodGet,
		"/api/v1/staff/"+st.ID.String()+"/availability?serviceId="+b.ID.String()+"&date=2030-03-04", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var avail availabilityResponse
	require.NoError(t, json.Unmarshal(env.Data, &avail))
	require.NotEmpty(t, avail.Slots)
	assert.Equal(t, testutil.Day(9, 0), avail.Slots[0].StartTime.UTC())
	for _, slot := range avail.Slots {
		assert.False(t, slot.StartTime.Before(testutil.Day(11, 0)) && slot.EndTime.After(testutil.Day(10, 0)),
			"slot %s overlaps booked interval", slot.StartTime)
	}

	w, env = call(t, r, http.MethodGet,
		"/api/v1/staff/"+st.ID.String()+"/availability?serviceId="+a.ID.String()+"&date=2030-03-04", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeServiceNotProvided, env.Error.Code)

	w, _ = call(t, r, http.MethodGet, "/api/v1/staff/"+st.ID.String()+"/availability?serviceId="+b.ID.String()+"&date=04.03.2030", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaff_DeactivatedCannotBeBooked(t *testing.T) {
	r, gdb := newTestRouter(t)
	x := testutil.SeedService(t, gdb, "X", 30)
	s := testutil.SeedStaff(t, gdb, "S", x)

	w, _ := call(t, r, http.MethodDelete, "/api/v1/staff/"+s.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)

	w, env := call(t, r, http.MethodPost, "/api/v1/reservations",
		reservationBody(s.ID.String(), `"serviceId":"`+x.ID.String()+`"`, "2030-03-04T10:00:00Z"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeStaffInactive, env.Error.Code)

	w, env = call(t, r, http.MethodGet, "/api/v1/staff?isActive=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.Meta["total"])
}

func TestHealth(t *testing.T) {
	gdb := testutil.NewDB(t)
	failing := true
	r := NewRouter(Deps{
		Booking: service.NewBookingService(gdb, service.BusinessHours{OpenHour: 9, CloseHour: 18, Step: 15 * time.Minute}, nil),
		Catalog: service.NewCatalogService(gdb, nil),
		Ready: func(context.Context) error {
			if failing {
				return errors.New("db down")
			}
			return nil
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	failing = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
