package errx

import (
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// WrapDB maps gorm errors to the unified AppError.
func WrapDB(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &AppError{Err: err, Status: http.StatusNotFound, Code: CodeNotFound, Message: "record not found"}
	}
	return &AppError{Err: err, Status: http.StatusBadGateway, Code: CodeStore, Message: DatabaseErrorMessage}
}
