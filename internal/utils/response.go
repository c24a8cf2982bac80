package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"hirevoice/interview/internal/apperr"
	"hirevoice/interview/internal/models"
)

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Error writes err as an ErrorResponse with the status its kind maps to.
// Unclassified errors are reported as a generic internal error.
func Error(w http.ResponseWriter, err error) {
	var blocking *apperr.BlockingError
	if errors.As(err, &blocking) {
		JSON(w, http.StatusConflict, models.ErrorResponse{
			Code:          "responses_pending",
			Message:       blocking.Error(),
			BlockingCount: blocking.Count,
		})
		return
	}

	var invalid *models.ErrorResponse
	if errors.As(err, &invalid) {
		JSON(w, http.StatusBadRequest, *invalid)
		return
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		JSON(w, appErr.Kind.HTTPStatus(), models.ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
		})
		return
	}

	JSON(w, http.StatusInternalServerError, models.ErrorResponse{
		Code:    "internal_error",
		Message: "Internal server error",
	})
}
