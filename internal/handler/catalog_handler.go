package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/query"
	"github.com/Leganyst/reservation-core/internal/repository"
	"github.com/Leganyst/reservation-core/internal/service"
)

type CatalogAPI interface {
	CreateService(ctx context.Context, in service.CreateServiceInput) (*model.Service, error)
	UpdateService(ctx context.Context, id uuid.UUID, in service.UpdateServiceInput) (*model.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (*model.Service, error)
	ListServices(ctx context.Context, opts query.Options) (query.Page[model.Service], error)
	DeleteService(ctx context.Context, id uuid.UUID) error

	CreateStaff(ctx context.Context, in service.CreateStaffInput) (*model.Staff, error)
	UpdateStaff(ctx context.Context, id uuid.UUID, in service.UpdateStaffInput) (*model.Staff, error)
	GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	ListStaff(ctx context.Context, opts query.Options) (query.Page[model.Staff], error)
	DeleteStaff(ctx context.Context, id uuid.UUID) error
	AssignServices(ctx context.Context, staffID uuid.UUID, serviceIDs []uuid.UUID) (*model.Staff, error)
}

type CatalogHandler struct {
	catalog CatalogAPI
}

func NewCatalogHandler(catalog CatalogAPI) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// bindServiceBody декодирует и валидирует тело услуги, возвращая сырые байты
// для последующего извлечения пользовательских атрибутов.
func bindServiceBody(c *gin.Context, dst any) ([]byte, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, bindingError(err)
	}
	if err := binding.JSON.BindBody(raw, dst); err != nil {
		return nil, bindingError(err)
	}
	return raw, nil
}

// ===== Services =====

func (h *CatalogHandler) ListServices(c *gin.Context) {
	opts := query.Parse(c.Request.URL.Query(), repository.ServiceListSpec.EntitySpec)
	page, err := h.catalog.ListServices(c.Request.Context(), opts)
	if err != nil {
		Fail(c, err)
		return
	}
	out := query.Map(page, func(s model.Service) map[string]any { return toServiceResponse(s, false) })
	Paged(c, out.Items, out.Meta)
}

func (h *CatalogHandler) GetService(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	svc, err := h.catalog.GetService(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, toServiceResponse(*svc, true))
}

func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req createServiceRequest
	raw, err := bindServiceBody(c, &req)
	if err != nil {
		Fail(c, err)
		return
	}
	attrs, err := extractAttributes(raw, req.Attributes)
	if err != nil {
		Fail(c, bindingError(err))
		return
	}

	svc, err := h.catalog.CreateService(c.Request.Context(), service.CreateServiceInput{
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Color:           req.Color,
		Attributes:      attrs,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, toServiceResponse(*svc, false))
}

func (h *CatalogHandler) UpdateService(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	var req updateServiceRequest
	raw, err := bindServiceBody(c, &req)
	if err != nil {
		Fail(c, err)
		return
	}
	attrs, err := extractAttributes(raw, req.Attributes)
	if err != nil {
		Fail(c, bindingError(err))
		return
	}

	svc, err := h.catalog.UpdateService(c.Request.Context(), id, service.UpdateServiceInput{
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
		Color:           req.Color,
		IsActive:        req.IsActive,
		Attributes:      attrs,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, toServiceResponse(*svc, true))
}

func (h *CatalogHandler) DeleteService(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	if err := h.catalog.DeleteService(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Message(c, "service deactivated")
}

// ===== Staff =====

func (h *CatalogHandler) ListStaff(c *gin.Context) {
	opts := query.Parse(c.Request.URL.Query(), repository.StaffListSpec.EntitySpec)
	page, err := h.catalog.ListStaff(c.Request.Context(), opts)
	if err != nil {
		Fail(c, err)
		return
	}
	out := query.Map(page, toStaffResponse)
	Paged(c, out.Items, out.Meta)
}

func (h *CatalogHandler) GetStaff(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	st, err := h.catalog.GetStaff(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, toStaffResponse(*st))
}

func (h *CatalogHandler) CreateStaff(c *gin.Context) {
	var req createStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindingError(err))
		return
	}
	st, err := h.catalog.CreateStaff(c.Request.Context(), service.CreateStaffInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Specialization: req.Specialization,
		ServiceIDs:     req.Services,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, toStaffResponse(*st))
}

func (h *CatalogHandler) UpdateStaff(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	var req updateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindingError(err))
		return
	}
	st, err := h.catalog.UpdateStaff(c.Request.Context(), id, service.UpdateStaffInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Specialization: req.Specialization,
		IsActive:       req.IsActive,
	})
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, toStaffResponse(*st))
}

func (h *CatalogHandler) DeleteStaff(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	if err := h.catalog.DeleteStaff(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Message(c, "staff deactivated")
}

func (h *CatalogHandler) AssignServices(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		Fail(c, err)
		return
	}
	var req assignServicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindingError(err))
		return
	}
	st, err := h.catalog.AssignServices(c.Request.Context(), id, req.ServiceIDs)
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, toStaffResponse(*st))
}
