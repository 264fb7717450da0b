package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// UtilizationRate returns the component's hours/day. ok is false when no rate
// can be derived; that is never an error for the caller.
func (l *Ledger) UtilizationRate(ctx context.Context, componentID string) (rate float64, ok bool) {
	cached, hit, generation := l.rates.Get(componentID)
	if hit {
		return cached, true
	}

	rate, err := l.computeUtilizationRate(ctx, componentID)
	if err != nil {
		l.logger.Warn("utilization rate unavailable",
			zap.String("component_id", componentID),
			zap.Error(err),
		)
		return 0, false
	}

	l.rates.Set(componentID, rate, generation)
	return rate, true
}

func (l *Ledger) computeUtilizationRate(ctx context.Context, componentID string) (rate float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: strategy panicked: %v", ErrComputationFailure, r)
		}
	}()

	since := l.now().Add(-l.window)
	history, err := l.store.FetchRunningHoursHistory(ctx, componentID, since)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to fetch history: %v", ErrComputationFailure, err)
	}

	rate, ok := l.strategy(history)
	if !ok {
		return 0, fmt.Errorf("%w: not enough history (%d samples)", ErrComputationFailure, len(history))
	}
	return rate, nil
}
