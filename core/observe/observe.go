// Package observe decorates a query.Executor with statement lifecycle events
// published on a typed event bus.
package observe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alephtav/go-ddd/core/query"
	"github.com/alephtav/go-ddd/core/record"
	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Executor wraps another executor and emits a start event before each
// statement and a success or failure event after it.
type Executor struct {
	next          query.Executor
	bus           *events.TypedEventBus[Event]
	logger        *zap.Logger
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

var _ query.Executor = (*Executor)(nil)

// New wraps next. A nil logger disables logging.
func New(next query.Executor, logger *zap.Logger) (*Executor, error) {
	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		next:          next,
		bus:           bus,
		logger:        logger,
		subscriptions: make(map[string]*SubscriptionInfo),
	}, nil
}

// Unwrap returns the decorated executor.
func (e *Executor) Unwrap() query.Executor { return e.next }

// RegisterSubscription registers a callback and returns its subscription id.
func (e *Executor) RegisterSubscription(options SubscriptionOptions) string {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	id := uuid.New().String()
	callback := options.Callback
	unsubscribe := e.bus.Subscribe(string(options.Event), func(ctx context.Context, ev Event) error {
		return callback(ctx, ev)
	})
	e.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		unsubscribe: unsubscribe,
	}
	e.logger.Info("Subscription registered", zap.String("id", id), zap.String("event", string(options.Event)))
	return id
}

// UnregisterSubscription removes a subscription. Unknown ids are ignored.
func (e *Executor) UnregisterSubscription(id string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	if info, ok := e.subscriptions[id]; ok {
		info.unsubscribe()
		delete(e.subscriptions, id)
		e.logger.Info("Subscription removed", zap.String("id", id))
	}
}

// Subscriptions lists the active subscriptions ordered by event and id.
func (e *Executor) Subscriptions() []SubscriptionInfo {
	e.subMu.RLock()
	defer e.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(e.subscriptions))
	for _, sub := range e.subscriptions {
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Event != subs[j].Event {
			return subs[i].Event < subs[j].Event
		}
		return subs[i].ID < subs[j].ID
	})
	return subs
}

func (e *Executor) emit(ev Event) {
	e.bus.Emit(string(ev.Type), ev)
}

// observed runs fn between a start event and a success or failure event.
func (e *Executor) observed(op, sql string, params query.Params, fn func() (*int64, error)) {
	id := uuid.New().String()
	started := time.Now()
	e.emit(newEvent(id, StatementStart, op, sql, params, started, nil))

	affected, err := fn()
	if err != nil {
		e.emit(newEvent(id, StatementFailed, op, sql, params, started, err))
		return
	}
	ev := newEvent(id, StatementSuccess, op, sql, params, started, nil)
	ev.Affected = affected
	e.emit(ev)
}

func (e *Executor) Execute(ctx context.Context, sql string, params query.Params) (n int64, err error) {
	e.observed("execute", sql, params, func() (*int64, error) {
		n, err = e.next.Execute(ctx, sql, params)
		return &n, err
	})
	return n, err
}

func (e *Executor) Insert(ctx context.Context, sql string, params query.Params, sequence string) (id any, err error) {
	e.observed("insert", sql, params, func() (*int64, error) {
		id, err = e.next.Insert(ctx, sql, params, sequence)
		return nil, err
	})
	return id, err
}

func (e *Executor) Rows(ctx context.Context, sql string, params query.Params) (rows []record.Row, err error) {
	e.observed("rows", sql, params, func() (*int64, error) {
		rows, err = e.next.Rows(ctx, sql, params)
		return nil, err
	})
	return rows, err
}

func (e *Executor) Row(ctx context.Context, sql string, params query.Params) (row record.Row, err error) {
	e.observed("row", sql, params, func() (*int64, error) {
		row, err = e.next.Row(ctx, sql, params)
		return nil, err
	})
	return row, err
}

func (e *Executor) Column(ctx context.Context, sql string, params query.Params) (values []any, err error) {
	e.observed("column", sql, params, func() (*int64, error) {
		values, err = e.next.Column(ctx, sql, params)
		return nil, err
	})
	return values, err
}

func (e *Executor) Scalar(ctx context.Context, sql string, params query.Params) (value any, err error) {
	e.observed("scalar", sql, params, func() (*int64, error) {
		value, err = e.next.Scalar(ctx, sql, params)
		return nil, err
	})
	return value, err
}
