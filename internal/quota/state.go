package quota

import (
	"fmt"
	"math"
	"net/http"

	errx "github.com/wiresense/server/internal/core/error"
)

// State is a user's standing in one category for one period. A nil Limit
// means unlimited.
type State struct {
	Category   Category `json:"category"`
	Period     string   `json:"period"`
	Current    int      `json:"current"`
	Limit      *int     `json:"limit"`
	Percentage int      `json:"percentage"`
	Allowed    bool     `json:"allowed"`
}

func newState(category Category, period string, current int, limit *int) State {
	s := State{Category: category, Period: period, Current: current, Limit: limit}
	switch {
	case limit == nil:
		s.Allowed = true
	case *limit <= 0:
		s.Percentage = 100
	default:
		s.Allowed = current < *limit
		s.Percentage = int(math.Round(100 * float64(current) / float64(*limit)))
	}
	return s
}

// ExceededError rejects a metered action. It carries the state so callers can
// render an upgrade prompt.
type ExceededError struct {
	State State
}

func (e *ExceededError) Error() string {
	limit := "unlimited"
	if e.State.Limit != nil {
		limit = fmt.Sprint(*e.State.Limit)
	}
	return fmt.Sprintf("quota exceeded for %s: %d of %s used in %s", e.State.Category, e.State.Current, limit, e.State.Period)
}

func (e *ExceededError) ErrorCode() errx.Code { return errx.CodeQuotaExceeded }

func (e *ExceededError) HTTPStatus() int { return http.StatusTooManyRequests }
