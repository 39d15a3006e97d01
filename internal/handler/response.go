package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/reservation-core/internal/apperror"
	"github.com/Leganyst/reservation-core/internal/query"
)

type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Meta    any        `json:"meta,omitempty"`
	Error   *ErrorData `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Details []apperror.FieldError `json:"details,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: msg})
}

func Paged(c *gin.Context, items any, meta query.Meta) {
	c.JSON(http.StatusOK, Response{Success: true, Data: items, Meta: meta})
}

// Fail отвечает ошибкой в общем формате. Полная причина попадает в c.Errors
// и пишется access-логом; клиенту для внутренних ошибок уходит общее сообщение.
func Fail(c *gin.Context, err error) {
	appErr := apperror.From(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus(), Response{
		Success: false,
		Error: &ErrorData{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

var errRouteNotFound = apperror.NotFound(apperror.CodeNotFound, "route not found")
