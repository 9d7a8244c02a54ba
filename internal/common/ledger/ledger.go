package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
)

var ErrInvalidAmount = errors.New("INVALID_AMOUNT")

// Ledger keeps the running cost total of each session.
type Ledger interface {
	Total(ctx context.Context, sessionID string) (float64, error)
	Add(ctx context.Context, sessionID string, amount float64) (float64, error)
}

func checkAmount(amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}

// round6 keeps totals at micro-currency precision so float drift does not accumulate.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

type MemoryLedger struct {
	mu     sync.Mutex
	totals map[string]float64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{totals: make(map[string]float64)}
}

func (l *MemoryLedger) Total(ctx context.Context, sessionID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[sessionID], nil
}

func (l *MemoryLedger) Add(ctx context.Context, sessionID string, amount float64) (float64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totals[sessionID] = round6(l.totals[sessionID] + amount)
	return l.totals[sessionID], nil
}
