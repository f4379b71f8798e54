package http

import (
	"github.com/go-playground/validator/v10"
)

// CheckRequest is the request body for POST / and POST /api/routes/chat/:index/.
type CheckRequest struct {
	Message string `json:"message" validate:"required"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version,omitempty"`
	Models  []string `json:"models"`
	// VectorStore is "ok" or "unavailable"; empty when not checked.
	VectorStore string `json:"vector_store,omitempty"`
}

// requestValidator adapts validator/v10 to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (rv *requestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}
