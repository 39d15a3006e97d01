package service

import (
	"errors"

	"github.com/Leganyst/reservation-core/internal/apperror"
	"github.com/Leganyst/reservation-core/internal/repository"
)

var (
	errServiceNotFound     = apperror.NotFound(apperror.CodeServiceNotFound, "service not found")
	errStaffNotFound       = apperror.NotFound(apperror.CodeStaffNotFound, "staff not found")
	errReservationNotFound = apperror.NotFound(apperror.CodeReservationNotFound, "reservation not found")
	errStaffInactive       = apperror.BadRequest(apperror.CodeStaffInactive, "staff is inactive")
	errServiceNotProvided  = apperror.BadRequest(apperror.CodeServiceNotProvided, "staff does not provide service")
	errNoServices          = apperror.BadRequest(apperror.CodeNoServices, "at least one service is required")
	errConflict            = apperror.Conflict("time slot conflicts with an existing reservation")
)

// storeErr переводит ошибку хранилища в ошибку домена.
// notFound используется, когда запись не найдена.
func storeErr(err error, notFound *apperror.Error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case repository.IsOverlapViolation(err):
		return errConflict
	case errors.Is(err, repository.ErrInvalidFilter):
		return apperror.Validation(err.Error())
	case repository.IsNotFound(err) && notFound != nil:
		return notFound
	}
	return apperror.Internal(err)
}
