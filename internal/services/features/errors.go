package features

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput signals a zero-length return series or a zero-row/column
// price table. Always fatal to the current call.
var ErrEmptyInput = errors.New("empty input")

// InvalidWeightsError signals a weight map that is empty, references
// unknown assets, or whose sum is outside the accepted tolerance.
type InvalidWeightsError struct {
	Reason  string
	Sum     float64
	Unknown []string
}

func (e *InvalidWeightsError) Error() string {
	if len(e.Unknown) > 0 {
		return fmt.Sprintf("invalid weights: %s: %s", e.Reason, strings.Join(e.Unknown, ", "))
	}
	if e.Sum != 0 {
		return fmt.Sprintf("invalid weights: %s (sum=%.6f)", e.Reason, e.Sum)
	}
	return "invalid weights: " + e.Reason
}

// InsufficientHistoryError signals a portfolio whose return history is
// shorter than the rolling window. Callers skip the portfolio, they do
// not abort.
type InsufficientHistoryError struct {
	PortfolioID string
	Have        int
	Need        int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: have %d returns, need %d", e.PortfolioID, e.Have, e.Need)
}
