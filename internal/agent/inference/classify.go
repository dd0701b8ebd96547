package inference

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	errx "github.com/wiresense/server/internal/core/error"
)

var configurationMarkers = []string{
	"api key not valid",
	"api_key_invalid",
	"permission_denied",
	"unauthenticated",
	"api key is required",
}

// Classify maps a provider error onto the gateway taxonomy.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errx.AppError
	if errors.As(err, &appErr) && (appErr.Code == errx.CodeConfiguration || appErr.Code == errx.CodeInference) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errx.Inference(err)
	}
	if code, ok := apiErrorCode(err); ok {
		switch {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return errx.Configuration(err)
		case code == http.StatusBadRequest && hasConfigurationMarker(err):
			return errx.Configuration(err)
		default:
			return errx.Inference(err)
		}
	}
	if hasConfigurationMarker(err) {
		return errx.Configuration(err)
	}
	return errx.Inference(err)
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}

func hasConfigurationMarker(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, m := range configurationMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
