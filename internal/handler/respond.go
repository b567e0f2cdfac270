package handler

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"mediatrack/internal/catalog"
	"mediatrack/internal/logging"
	"mediatrack/internal/models"
	"mediatrack/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

var errBadBody = errors.New("invalid request body")

// decodeAndValidate reads a JSON body into req and runs its validate tags.
func decodeAndValidate(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return validatorInstance().Struct(req)
}

type errorBody struct {
	Error   string `json:"error"`
	Partial bool   `json:"partial,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var partial *service.PartialEdgeError
	if errors.As(err, &partial) {
		body.Partial = true
	}

	ev := logging.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		ev = logging.Ctx(r.Context()).Error()
	}
	ev.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")

	writeJSON(w, status, body)
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, errBadBody),
		errors.Is(err, models.ErrInvalidCategory),
		errors.Is(err, models.ErrInvalidKind),
		errors.Is(err, models.ErrInvalidMediaID),
		errors.Is(err, models.ErrInvalidRating),
		errors.Is(err, models.ErrInvalidRatingKey),
		errors.Is(err, service.ErrEmptyListName),
		errors.Is(err, service.ErrUsernameReadOnly),
		errors.Is(err, service.ErrInvalidVisibility):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCustomListNotFound),
		errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStaleSession):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
