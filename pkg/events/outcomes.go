// Package events publishes de-identified prediction outcomes to the event bus.
package events

import (
	"context"
	"time"

	"github.com/readmit-ai/hrp/pkg/common/httpclient"
	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/dlp"
	"github.com/readmit-ai/hrp/pkg/observability/metrics"
	"github.com/readmit-ai/hrp/pkg/results"
)

const (
	EventPredictionCompleted = "prediction.completed"
	EventPredictionFailed    = "prediction.failed"

	Source = "hrp-web"
)

type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// OutcomeObserver publishes one event per settled visit. The patient name is
// never included.
type OutcomeObserver struct {
	publisher Publisher
	redactor  *dlp.Redactor
	timeout   time.Duration
	attempts  int
}

func NewOutcomeObserver(publisher Publisher, timeout time.Duration) *OutcomeObserver {
	return &OutcomeObserver{publisher: publisher, timeout: timeout, attempts: 3}
}

// WithRedactor masks identifiers in string payload values before publishing.
func (o *OutcomeObserver) WithRedactor(r *dlp.Redactor) *OutcomeObserver {
	o.redactor = r
	return o
}

func (o *OutcomeObserver) ObserveOutcome(ctx context.Context, outcome results.Outcome) {
	eventType, data := OutcomeEvent(outcome)
	var redacted []string
	if msg, ok := data["error"].(string); ok {
		redacted = o.redactor.Types(msg)
	}
	data = o.redactor.Map(data)
	if msg, ok := data["error"].(string); ok {
		data["error"] = o.redactor.Text(msg, patientName(outcome))
	}
	if len(redacted) > 0 {
		data["redacted_types"] = redacted
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	err := httpclient.RetryIf(ctx, o.attempts, 100*time.Millisecond, func() error {
		return o.publisher.PublishEvent(ctx, eventType, Source, data)
	}, httpclient.IsRetriable)
	if err != nil {
		logger.Log.WithError(err).WithField("visit_id", outcome.VisitID).Warn("Dropped prediction outcome event")
	}
}

// OutcomeEvent builds the event type and payload for a settled visit.
func OutcomeEvent(outcome results.Outcome) (string, map[string]interface{}) {
	data := map[string]interface{}{
		"visit_id":    outcome.VisitID,
		"outcome":     metrics.OutcomeLabel(outcome),
		"duration_ms": outcome.Duration.Milliseconds(),
	}
	if req := outcome.Request; req != nil {
		data["age"] = req.Age
		data["time_in_hospital"] = req.TimeInHospital
		data["diag_1"] = req.Diag1
		data["medical_specialty"] = req.MedicalSpecialty
	}
	if outcome.State != results.StateSuccess || outcome.Result == nil {
		if outcome.Err != nil {
			data["error"] = outcome.Err.Error()
		}
		return EventPredictionFailed, data
	}
	data["readmit_probability"] = outcome.Result.Probability
	data["will_readmit"] = outcome.Result.WillReadmit
	data["risk_level"] = outcome.Result.RiskLevel
	return EventPredictionCompleted, data
}

func patientName(outcome results.Outcome) string {
	if outcome.Request == nil {
		return ""
	}
	return outcome.Request.Name
}
