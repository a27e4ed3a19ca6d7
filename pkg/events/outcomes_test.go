package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/readmit-ai/hrp/pkg/dlp"
	"github.com/readmit-ai/hrp/pkg/prediction"
	"github.com/readmit-ai/hrp/pkg/results"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	eventType string
	data      map[string]interface{}
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	failWith error
	calls    int
	events   []published
}

func (f *fakePublisher) PublishEvent(_ context.Context, eventType, _ string, data map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		if f.failWith != nil {
			return f.failWith
		}
		return kafkago.LeaderNotAvailable
	}
	f.events = append(f.events, published{eventType: eventType, data: data})
	return nil
}

func successOutcome() results.Outcome {
	req := prediction.BuildRequest(models.IntakeRecord{Name: "Ada Lovelace", Age: "70-80"})
	res, _ := prediction.Derive(models.PredictionResponse{"readmit_probability": 0.81}, req, nil)
	return results.Outcome{
		VisitID:  "v-1",
		State:    results.StateSuccess,
		Request:  &req,
		Result:   &res,
		Duration: 120 * time.Millisecond,
	}
}

func TestOutcomeEventCompleted(t *testing.T) {
	eventType, data := OutcomeEvent(successOutcome())
	assert.Equal(t, EventPredictionCompleted, eventType)
	assert.Equal(t, "high_risk", data["outcome"])
	assert.Equal(t, "High Risk", data["risk_level"])
	assert.Equal(t, "70-80", data["age"])
	assert.Equal(t, int64(120), data["duration_ms"])
	for _, v := range data {
		assert.NotEqual(t, "Ada Lovelace", v)
	}
}

func TestOutcomeEventFailed(t *testing.T) {
	eventType, data := OutcomeEvent(results.Outcome{
		VisitID: "v-2",
		State:   results.StateError,
		Err:     errors.New("connection refused"),
	})
	assert.Equal(t, EventPredictionFailed, eventType)
	assert.Equal(t, "failed", data["outcome"])
	assert.Equal(t, "connection refused", data["error"])
}

func TestObserverRetriesPublish(t *testing.T) {
	pub := &fakePublisher{failures: 1}
	NewOutcomeObserver(pub, time.Second).ObserveOutcome(context.Background(), successOutcome())
	require.Len(t, pub.events, 1)
	assert.Equal(t, EventPredictionCompleted, pub.events[0].eventType)
}

func TestObserverGivesUp(t *testing.T) {
	pub := &fakePublisher{failures: 10}
	NewOutcomeObserver(pub, time.Second).ObserveOutcome(context.Background(), successOutcome())
	assert.Empty(t, pub.events)
	assert.Equal(t, 3, pub.calls)
}

func TestObserverDoesNotRetryPermanentErrors(t *testing.T) {
	pub := &fakePublisher{failures: 10, failWith: errors.New("message too large")}
	NewOutcomeObserver(pub, time.Second).ObserveOutcome(context.Background(), successOutcome())
	assert.Empty(t, pub.events)
	assert.Equal(t, 1, pub.calls)
}

func TestObserverRedactsErrorText(t *testing.T) {
	redactor, err := dlp.NewRedactor(dlp.DefaultRules())
	require.NoError(t, err)

	req := prediction.BuildRequest(models.IntakeRecord{Name: "Ada Lovelace", Age: "70-80"})
	pub := &fakePublisher{}
	NewOutcomeObserver(pub, time.Second).WithRedactor(redactor).ObserveOutcome(context.Background(), results.Outcome{
		VisitID: "v-3",
		State:   results.StateError,
		Request: &req,
		Err:     errors.New("record for Ada Lovelace (ada@example.com) rejected"),
	})

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventPredictionFailed, pub.events[0].eventType)
	assert.Equal(t, "record for [REDACTED] (***@***) rejected", pub.events[0].data["error"])
	assert.Equal(t, []string{"email"}, pub.events[0].data["redacted_types"])
	assert.Equal(t, "70-80", pub.events[0].data["age"])
}
