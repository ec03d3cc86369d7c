package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientHistory means a series is too short for an indicator.
	// It is fatal to that one computation only.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrSymbolUnavailable covers every provider-side failure for a symbol.
	// Callers exclude the symbol and keep going.
	ErrSymbolUnavailable = errors.New("symbol unavailable")

	// ErrSymbolNotFound is returned by providers for unknown symbols
	ErrSymbolNotFound = fmt.Errorf("%w: symbol not found", ErrSymbolUnavailable)

	// ErrProviderUnavailable is returned by providers on transport failures and timeouts
	ErrProviderUnavailable = fmt.Errorf("%w: provider unavailable", ErrSymbolUnavailable)

	// ErrNoUsableData is the only request-level failure: no symbol produced usable data
	ErrNoUsableData = errors.New("no usable price data")

	// ErrInvalidInput rejects malformed caller input such as negative quantities
	ErrInvalidInput = errors.New("invalid input")
)

// InsufficientHistoryError carries how many points were needed
type InsufficientHistoryError struct {
	Symbol string
	Need   int
	Have   int
}

func (e *InsufficientHistoryError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("insufficient price history: need %d points, have %d", e.Need, e.Have)
	}
	return fmt.Sprintf("insufficient price history for %s: need %d points, have %d", e.Symbol, e.Need, e.Have)
}

// Is makes errors.Is(err, ErrInsufficientHistory) work
func (e *InsufficientHistoryError) Is(target error) bool {
	return target == ErrInsufficientHistory
}

// NewInsufficientHistory builds an InsufficientHistoryError
func NewInsufficientHistory(symbol string, need, have int) error {
	return &InsufficientHistoryError{Symbol: symbol, Need: need, Have: have}
}
