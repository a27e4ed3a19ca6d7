package auditlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/dlp"
	"github.com/readmit-ai/hrp/pkg/observability/metrics"
	"github.com/readmit-ai/hrp/pkg/results"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PredictionLog is one settled results visit. Patient names are not stored.
type PredictionLog struct {
	ID          uuid.UUID         `gorm:"primaryKey;column:id"`
	VisitID     string            `gorm:"column:visit_id;index"`
	Outcome     string            `gorm:"column:outcome"`
	Request     datatypes.JSONMap `gorm:"column:request"`
	Response    datatypes.JSONMap `gorm:"column:response"`
	Probability *float64          `gorm:"column:probability"`
	RiskLevel   string            `gorm:"column:risk_level"`
	Error       string            `gorm:"column:error"`
	LatencyMs   float64           `gorm:"column:latency_ms"`
	CreatedAt   time.Time         `gorm:"column:created_at"`
}

// TableName overrides gorm naming.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// Repository writes prediction logs.
type Repository struct {
	db       *gorm.DB
	redactor *dlp.Redactor
	timeout  time.Duration
}

// DefaultWriteTimeout bounds one audit insert made on behalf of a settled visit.
const DefaultWriteTimeout = 5 * time.Second

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, timeout: DefaultWriteTimeout}
}

// WithTimeout overrides the per-write deadline used by ObserveOutcome.
func (r *Repository) WithTimeout(d time.Duration) *Repository {
	r.timeout = d
	return r
}

// WithRedactor masks identifiers in stored error text and responses.
func (r *Repository) WithRedactor(redactor *dlp.Redactor) *Repository {
	r.redactor = redactor
	return r
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLog{})
}

func (r *Repository) RecordOutcome(ctx context.Context, outcome results.Outcome) error {
	entry := r.entryFor(outcome, time.Now().UTC())
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *Repository) entryFor(outcome results.Outcome, now time.Time) PredictionLog {
	entry := NewPredictionLog(outcome, now)
	if r.redactor == nil {
		return entry
	}
	var name string
	if outcome.Request != nil {
		name = outcome.Request.Name
	}
	entry.Error = r.redactor.Text(entry.Error, name)
	if entry.Response != nil {
		entry.Response = datatypes.JSONMap(r.redactor.Map(entry.Response, name))
	}
	return entry
}

// ObserveOutcome lets the repository subscribe to settled visits.
func (r *Repository) ObserveOutcome(ctx context.Context, outcome results.Outcome) {
	ctx, cancel := r.writeContext(ctx)
	defer cancel()
	if err := r.RecordOutcome(ctx, outcome); err != nil {
		logger.Log.WithError(err).WithField("visit_id", outcome.VisitID).Error("Failed to record prediction log")
	}
}

func (r *Repository) writeContext(parent context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, r.timeout)
}

// NewPredictionLog builds the row for an outcome with name fields removed from
// both the request and the service response.
func NewPredictionLog(outcome results.Outcome, now time.Time) PredictionLog {
	entry := PredictionLog{
		ID:        uuid.New(),
		VisitID:   outcome.VisitID,
		Outcome:   metrics.OutcomeLabel(outcome),
		LatencyMs: float64(outcome.Duration.Microseconds()) / 1000.0,
		CreatedAt: now,
	}
	if outcome.Request != nil {
		entry.Request = toJSONMap(outcome.Request)
		delete(entry.Request, "name")
	}
	if res := outcome.Result; res != nil {
		if res.Response != nil {
			entry.Response = make(datatypes.JSONMap, len(res.Response))
			for k, v := range res.Response {
				entry.Response[k] = v
			}
			delete(entry.Response, "name")
		}
		prob := res.Probability
		entry.Probability = &prob
		entry.RiskLevel = res.RiskLevel
	}
	if outcome.Err != nil {
		entry.Error = outcome.Err.Error()
	}
	return entry
}

func toJSONMap(v interface{}) datatypes.JSONMap {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m datatypes.JSONMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
