package pagination

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds the page size requested by a list call.
type Params struct {
	Limit int
}

// FromContext reads the "limit" query parameter. An absent value yields
// DefaultLimit; values outside [1, MaxLimit] or non-numeric values are
// rejected.
func FromContext(c echo.Context) (Params, error) {
	raw := strings.TrimSpace(c.QueryParam("limit"))
	if raw == "" {
		return Params{Limit: DefaultLimit}, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return Params{}, fmt.Errorf("limit must be an integer")
	}
	if limit < 1 || limit > MaxLimit {
		return Params{}, fmt.Errorf("limit must be between 1 and %d", MaxLimit)
	}
	return Params{Limit: limit}, nil
}
