package observer

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-media-analyzer/pkg/models"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) OnEvent(ctx context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) GetObserverName() string { return r.name }

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, Event) { panic("boom") }
func (panickingObserver) GetObserverName() string        { return "panicker" }

func TestSyncPublisherDeliversInOrder(t *testing.T) {
	pub := NewSyncEventPublisher()
	rec := &recordingObserver{name: "rec"}
	pub.Subscribe(panickingObserver{})
	pub.Subscribe(rec)

	pub.NotifyObservers(context.Background(), Event{Type: StreamStarted})
	pub.NotifyObservers(context.Background(), Event{Type: StreamStopped})

	require.Equal(t, 2, rec.count())
	assert.Equal(t, StreamStarted, rec.events[0].Type)
	assert.Equal(t, StreamStopped, rec.events[1].Type)
	assert.False(t, rec.events[0].Timestamp.IsZero())
}

func TestAsyncPublisherAndUnsubscribe(t *testing.T) {
	pub := NewEventPublisher()
	rec := &recordingObserver{name: "rec"}
	pub.Subscribe(rec)

	pub.NotifyObservers(context.Background(), Event{Type: MediaChanged})
	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	pub.Unsubscribe(&recordingObserver{name: "rec"})
	pub.NotifyObservers(context.Background(), Event{Type: MediaChanged})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(log)
	obs.OnEvent(context.Background(), Event{
		Type:         InferenceFailed,
		Mode:         models.ModeOCR,
		ErrorMessage: "worker died",
		Metadata:     map[string]interface{}{"frame": 12},
	})

	out := buf.String()
	assert.Contains(t, out, `"mode":"ocr"`)
	assert.Contains(t, out, `"error":"worker died"`)
	assert.Contains(t, out, `"frame":12`)
	assert.Contains(t, out, `"level":"warning"`)
}

func TestStreamObserverDropsWhenFullAndCloses(t *testing.T) {
	obs := NewStreamObserver("ws-1", 1)
	obs.OnEvent(context.Background(), Event{Type: HistoryChanged})
	obs.OnEvent(context.Background(), Event{Type: SettingsChanged})

	e, ok := <-obs.Events()
	require.True(t, ok)
	assert.Equal(t, HistoryChanged, e.Type)

	obs.Close()
	obs.Close()
	obs.OnEvent(context.Background(), Event{Type: HistoryChanged})
	_, ok = <-obs.Events()
	assert.False(t, ok)
}

func TestMetricsObserverExposition(t *testing.T) {
	obs := NewMetricsObserver()
	ctx := context.Background()

	obs.OnEvent(ctx, Event{Type: ResultChanged, Mode: models.ModeDetection, Duration: 200 * time.Millisecond})
	obs.OnEvent(ctx, Event{Type: InferenceFailed, Mode: models.ModeDetection})
	obs.OnEvent(ctx, Event{Type: HistoryChanged, Success: true})
	obs.OnEvent(ctx, Event{Type: SettingsPersisted, Success: false})
	obs.OnEvent(ctx, Event{Type: StreamStarted})

	rec := httptest.NewRecorder()
	obs.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `media_analyzer_inferences_total{mode="detection",outcome="success"} 1`)
	assert.Contains(t, text, `media_analyzer_inferences_total{mode="detection",outcome="failure"} 1`)
	assert.Contains(t, text, `media_analyzer_inference_duration_seconds_count{mode="detection"} 1`)
	assert.Contains(t, text, `media_analyzer_history_writes_total{outcome="success"} 1`)
	assert.Contains(t, text, `media_analyzer_settings_writes_total{outcome="failure"} 1`)
	assert.Contains(t, text, `media_analyzer_active_streams 1`)
}
