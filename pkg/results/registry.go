package results

import (
	"context"
	"sync"
	"time"

	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/readmit-ai/hrp/pkg/prediction"
)

// Registry tracks live results visits by handoff ID so a refreshing results page
// can pick its visit back up, and so navigation away can cancel it.
type Registry struct {
	predictor prediction.Predictor
	recommend Recommender
	observers []Observer
	ttl       time.Duration
	now       func() time.Time

	mu     sync.Mutex
	visits map[string]*Visit
}

func NewRegistry(predictor prediction.Predictor, recommend Recommender, ttl time.Duration, observers ...Observer) *Registry {
	return &Registry{
		predictor: predictor,
		recommend: recommend,
		observers: observers,
		ttl:       ttl,
		now:       time.Now,
		visits:    make(map[string]*Visit),
	}
}

// NewVisit builds a visit wired to the registry's predictor and observers
// without tracking it.
func (r *Registry) NewVisit(id string, record *models.IntakeRecord) *Visit {
	return NewVisit(id, record, r.predictor, r.recommend, r.observers...)
}

// Open starts and tracks a visit for id, replacing (and closing) any previous
// visit with the same id.
func (r *Registry) Open(ctx context.Context, id string, record *models.IntakeRecord) *Visit {
	v := r.NewVisit(id, record)

	r.mu.Lock()
	prev := r.visits[id]
	r.visits[id] = v
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	v.Start(ctx)
	return v
}

func (r *Registry) Get(id string) (*Visit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visits[id]
	return v, ok
}

// Release closes and forgets the visit for id, aborting any request in flight.
func (r *Registry) Release(id string) bool {
	r.mu.Lock()
	v, ok := r.visits[id]
	delete(r.visits, id)
	r.mu.Unlock()

	if ok {
		v.Close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visits)
}

// Sweep closes visits older than the registry TTL and returns how many went.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var expired []*Visit

	r.mu.Lock()
	for id, v := range r.visits {
		if v.CreatedAt().Before(cutoff) {
			expired = append(expired, v)
			delete(r.visits, id)
		}
	}
	r.mu.Unlock()

	for _, v := range expired {
		v.Close()
	}
	return len(expired)
}

// Run sweeps expired visits until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Log.WithField("expired", n).Info("Swept abandoned results visits")
			}
		}
	}
}

// CloseAll disposes of every tracked visit.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	visits := r.visits
	r.visits = make(map[string]*Visit)
	r.mu.Unlock()

	for _, v := range visits {
		v.Close()
	}
}
