package server

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/nodeflow/errors"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError sends the status and body apperrors.Response derives
// from err.
func RespondWithError(c *gin.Context, err error) {
	c.JSON(apperrors.Response(err))
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondAccepted sends a 202 response wrapping data.
func RespondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, DataResponse{Data: data})
}

// RespondNoContent sends a 204 with no body.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// JSONSafe replaces non-finite floats, which JSON cannot carry, with their
// string form. Division by zero legitimately produces them.
func JSONSafe(v any) any {
	switch x := v.(type) {
	case float64:
		switch {
		case math.IsInf(x, 1):
			return "+Inf"
		case math.IsInf(x, -1):
			return "-Inf"
		case math.IsNaN(x):
			return "NaN"
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = JSONSafe(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = JSONSafe(item)
		}
		return out
	}
	return v
}
