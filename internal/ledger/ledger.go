package ledger

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/running-hours-ledger/internal/cache"
	"github.com/septivank/running-hours-ledger/internal/utilization"
	"github.com/septivank/running-hours-ledger/internal/validator"
	"github.com/septivank/running-hours-ledger/tools/timeparser"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultWindow      = 30 * 24 * time.Hour
	defaultBulkWorkers = 8
)

// Ledger applies running-hours updates and serves utilization rates
type Ledger struct {
	store     Store
	rates     *cache.UtilizationRateCache
	strategy  utilization.Strategy
	validator *validator.Validator
	logger    *zap.Logger

	now     func() time.Time
	newID   func() uuid.UUID
	window  time.Duration
	workers int

	locks keyedMutex
}

// Option customizes a Ledger
type Option func(*Ledger)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator replaces uuid.New for audit ids
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithUtilizationWindow sets how much history feeds the utilization rate
func WithUtilizationWindow(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithBulkWorkers bounds how many bulk rows are applied concurrently
func WithBulkWorkers(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.workers = n
		}
	}
}

// New creates a ledger over store. rates is owned by the ledger from here on.
func New(store Store, rates *cache.UtilizationRateCache, strategy utilization.Strategy, logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		rates:    rates,
		strategy: strategy,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.New,
		window:   defaultWindow,
		workers:  defaultBulkWorkers,
		locks:    keyedMutex{locks: make(map[string]*keyLock)},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.rates == nil {
		l.rates = cache.NewUtilizationRateCache(cache.DefaultTTL, l.now)
	}
	if l.strategy == nil {
		l.strategy = utilization.SimpleDelta
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	l.validator = validator.NewValidator(l.now)
	return l
}

// ApplySingleUpdate validates and applies one entry. Nothing is stored unless
// every check passes.
func (l *Ledger) ApplySingleUpdate(ctx context.Context, componentID string, input UpdateInput) (*UpdateResult, error) {
	if !input.Mode.Valid() {
		return nil, &ValidationError{Field: "mode", Message: "please select an update mode"}
	}

	reading, res := l.validator.ValidateReading(validator.ReadingForm{
		Value:         input.Value,
		MeterReplaced: input.MeterReplaced,
		OldMeterFinal: input.OldMeterFinal,
		NewMeterStart: input.NewMeterStart,
	})
	if !res.IsValid {
		return nil, validationFromResult(res)
	}

	date, res := l.validator.ValidateDate(input.DateUpdatedLocal, input.Timezone)
	if !res.IsValid {
		return nil, validationFromResult(res)
	}

	result, err := l.apply(ctx, change{
		componentID: componentID,
		mode:        input.Mode,
		reading:     reading,
		date:        date,
		timezone:    strings.TrimSpace(input.Timezone),
		comments:    input.Comments,
		userID:      input.UserID,
		source:      SourceSingle,
	}, false)
	if err != nil {
		return nil, err
	}

	l.rates.Invalidate()
	l.logger.Debug("running hours updated",
		zap.String("component_id", componentID),
		zap.String("audit_id", result.Audit.ID.String()),
		zap.Float64("previous_rh", result.Audit.PreviousRH),
		zap.Float64("cumulative_rh", result.Audit.CumulativeRH),
		zap.Bool("meter_replaced", result.Audit.MeterReplaced),
	)
	return result, nil
}

type change struct {
	componentID string
	mode        Mode
	reading     validator.Reading
	date        time.Time
	timezone    string
	comments    string
	userID      string
	source      Source
}

// apply computes the new cumulative value under the component lock and, unless
// dryRun, hands it to the store
func (l *Ledger) apply(ctx context.Context, c change, dryRun bool) (*UpdateResult, error) {
	if strings.TrimSpace(c.componentID) == "" {
		return nil, &ValidationError{Field: "componentId", Message: "component is required"}
	}

	unlock := l.locks.Lock(c.componentID)
	defer unlock()

	record, err := l.store.FetchComponentRunningHours(ctx, c.componentID)
	if err != nil {
		if errors.Is(err, ErrComponentNotFound) {
			return nil, &ValidationError{Field: "componentId", Message: ErrComponentNotFound.Error(), Err: err}
		}
		return nil, &PersistenceError{Op: "fetch", ComponentID: c.componentID, Err: err}
	}

	previous := decimal.NewFromFloat(record.CumulativeRunningHours)
	value := decimal.NewFromFloat(c.reading.Value)

	var newTotal, cumulative decimal.Decimal
	if c.reading.MeterReplaced {
		// the new meter counts from its start reading; the old meter's hours are already in previous
		newTotal = value
		cumulative = previous.Add(value.Sub(decimal.NewFromFloat(*c.reading.NewMeterStart)))
	} else {
		switch c.mode {
		case ModeAddDelta:
			newTotal = previous.Add(value)
		default:
			newTotal = value
		}
		if newTotal.LessThan(previous) {
			return nil, &ValidationError{Field: validator.FieldValue, Message: MsgNotMonotonic, Err: ErrNotMonotonic}
		}
		cumulative = newTotal
	}
	if math.IsInf(cumulative.InexactFloat64(), 0) || math.IsInf(newTotal.InexactFloat64(), 0) {
		return nil, &ValidationError{Field: validator.FieldValue, Message: MsgOutOfRange}
	}

	audit := Audit{
		ID:                 l.newID(),
		ComponentID:        c.componentID,
		PreviousRH:         previous.InexactFloat64(),
		NewRH:              newTotal.InexactFloat64(),
		CumulativeRH:       cumulative.InexactFloat64(),
		DateUpdatedLocal:   c.date,
		DateUpdatedDisplay: timeparser.FormatVesselDisplay(c.date),
		DateUpdatedTZ:      c.timezone,
		EnteredAtUTC:       l.now().UTC(),
		UserID:             c.userID,
		Source:             c.source,
		Notes:              strings.TrimSpace(c.comments),
		MeterReplaced:      c.reading.MeterReplaced,
		OldMeterFinal:      c.reading.OldMeterFinal,
		NewMeterStart:      c.reading.NewMeterStart,
		Version:            record.Version + 1,
	}

	updated := Record{
		ComponentID:            c.componentID,
		CumulativeRunningHours: audit.CumulativeRH,
		LastUpdatedLocal:       c.date,
		LastUpdatedTZ:          c.timezone,
		Version:                audit.Version,
	}

	if !dryRun {
		if err := l.store.PersistRunningHoursUpdate(ctx, audit, audit.CumulativeRH); err != nil {
			return nil, &PersistenceError{Op: "persist", ComponentID: c.componentID, Err: err}
		}
	}

	return &UpdateResult{Previous: record, Record: updated, Audit: audit}, nil
}

func validationFromResult(res validator.ValidationResult) *ValidationError {
	ve := &ValidationError{Field: res.Field, Message: res.Reason}
	if res.Reason == validator.ReasonInvalidNumber {
		ve.Err = ErrInvalidNumber
	}
	return ve
}

type keyLock struct {
	sync.Mutex
	refs int
}

// keyedMutex serializes updates per component
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
