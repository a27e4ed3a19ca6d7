// Package results drives the results page: one prediction request per visit,
// rendered as Loading, then Success or Error.
package results

import (
	"context"
	"sync"
	"time"

	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/readmit-ai/hrp/pkg/prediction"
)

// MissingInputMessage is shown when the page is reached without a submission.
const MissingInputMessage = "No patient data provided"

type State int

const (
	StateLoading State = iota
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}

// Snapshot is an immutable view of a visit, safe to render.
type Snapshot struct {
	ID     string
	State  State
	Result *models.PredictionResult
	Error  string
}

// Outcome is reported to observers once a visit reaches a terminal state.
type Outcome struct {
	VisitID      string
	State        State
	MissingInput bool
	Request      *models.PredictionRequest
	Result       *models.PredictionResult
	Err          error
	Duration     time.Duration
}

type Observer interface {
	ObserveOutcome(ctx context.Context, outcome Outcome)
}

// Recommender returns the static recommendation list for a verdict.
type Recommender func(willReadmit bool) []string

// Visit is one arrival on the results page. The record may be nil when nothing
// was handed off.
type Visit struct {
	id        string
	record    *models.IntakeRecord
	predictor prediction.Predictor
	recommend Recommender
	observers []Observer
	createdAt time.Time

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	mu       sync.RWMutex
	state    State
	result   *models.PredictionResult
	errorMsg string
	closed   bool
}

func NewVisit(id string, record *models.IntakeRecord, predictor prediction.Predictor, recommend Recommender, observers ...Observer) *Visit {
	ctx, cancel := context.WithCancel(context.Background())
	v := &Visit{
		id:        id,
		predictor: predictor,
		recommend: recommend,
		observers: observers,
		createdAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateLoading,
	}
	if record != nil {
		rec := record.Clone()
		v.record = &rec
	}
	return v
}

func (v *Visit) ID() string { return v.id }

func (v *Visit) CreatedAt() time.Time { return v.createdAt }

// Done is closed once the visit reaches a terminal state or is closed.
func (v *Visit) Done() <-chan struct{} { return v.done }

// Start launches the fetch. Later calls are no-ops. parent carries request
// scoped values only; the fetch lives until the visit is closed.
func (v *Visit) Start(parent context.Context) {
	v.startOnce.Do(func() {
		ctx := v.ctx
		if parent != nil {
			ctx = detach(v.ctx, parent)
		}
		go v.run(ctx)
	})
}

// Wait blocks until the visit settles or ctx ends.
func (v *Visit) Wait(ctx context.Context) Snapshot {
	select {
	case <-v.done:
	case <-ctx.Done():
	}
	return v.Snapshot()
}

func (v *Visit) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Snapshot{ID: v.id, State: v.state, Result: v.result, Error: v.errorMsg}
}

// Close disposes of the visit and aborts an in-flight request. No state change
// is applied after Close.
func (v *Visit) Close() {
	v.mu.Lock()
	wasClosed := v.closed
	v.closed = true
	settled := v.state.Terminal()
	v.mu.Unlock()

	v.cancel()
	if !wasClosed && !settled {
		logger.Log.WithField("visit_id", v.id).Info("Results visit closed before prediction completed")
	}
	// unblock waiters when the fetch never started
	v.startOnce.Do(func() { close(v.done) })
}

func (v *Visit) run(ctx context.Context) {
	outcome, ok := v.fetch(ctx)
	if ok {
		ok = v.settle(outcome)
	}
	close(v.done)
	if !ok {
		return
	}
	// Observers bound their own writes; see auditlog and events.
	notifyCtx := context.WithoutCancel(ctx)
	for _, o := range v.observers {
		o.ObserveOutcome(notifyCtx, outcome)
	}
}

// fetch performs the single prediction call. It reports false when the visit
// was disposed while the call was in flight.
func (v *Visit) fetch(ctx context.Context) (Outcome, bool) {
	start := time.Now()
	if v.record == nil {
		return Outcome{
			VisitID:      v.id,
			State:        StateError,
			MissingInput: true,
			Duration:     time.Since(start),
		}, true
	}

	req := prediction.BuildRequest(*v.record)
	outcome := Outcome{VisitID: v.id, Request: &req}

	resp, err := v.predictor.Predict(ctx, req)
	if ctx.Err() != nil {
		return outcome, false
	}
	if err == nil {
		var result models.PredictionResult
		if result, err = prediction.Derive(resp, req, v.recommend); err == nil {
			outcome.State, outcome.Result = StateSuccess, &result
		}
	}
	if err != nil {
		logger.Log.WithError(err).WithField("visit_id", v.id).Error("Prediction error")
		outcome.State, outcome.Err = StateError, err
	}
	outcome.Duration = time.Since(start)
	return outcome, true
}

func (v *Visit) settle(outcome Outcome) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	v.state = outcome.State
	v.result = outcome.Result
	switch {
	case outcome.MissingInput:
		v.errorMsg = MissingInputMessage
	case outcome.State == StateError:
		v.errorMsg = prediction.UserMessage(outcome.Err)
	}
	return true
}

// detach keeps parent's values (request ID) but takes cancellation from life.
func detach(life, parent context.Context) context.Context {
	return valueContext{Context: life, values: parent}
}

type valueContext struct {
	context.Context
	values context.Context
}

func (c valueContext) Value(key interface{}) interface{} {
	if v := c.Context.Value(key); v != nil {
		return v
	}
	return c.values.Value(key)
}
