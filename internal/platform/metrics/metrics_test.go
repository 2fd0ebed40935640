package metrics

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecordAndSnapshot(t *testing.T) {
	c := &Collector{StartTime: time.Now()}

	c.RecordGeneration()
	c.RecordGeneration()
	c.RecordStep(2 * time.Millisecond)
	c.RecordStep(4 * time.Millisecond)
	c.RecordEventWrite(time.Millisecond, nil)
	c.RecordEventWrite(time.Millisecond, errors.New("disk full"))
	c.RecordWSDropped()

	snap := c.Snapshot()
	gen := snap["generation"].(map[string]interface{})
	if gen["emitted"].(int64) != 2 {
		t.Errorf("Expected 2 generations, got %v", gen["emitted"])
	}
	if avg := gen["avg_step_latency_ms"].(float64); avg != 3 {
		t.Errorf("Expected 3ms average step, got %v", avg)
	}
	if mx := gen["max_step_latency_ms"].(float64); mx != 4 {
		t.Errorf("Expected 4ms max step, got %v", mx)
	}

	ev := snap["events"].(map[string]interface{})
	if ev["errors"].(int64) != 1 {
		t.Errorf("Expected 1 event write error, got %v", ev["errors"])
	}
	ws := snap["websocket"].(map[string]interface{})
	if ws["dropped"].(int64) != 1 {
		t.Errorf("Expected 1 dropped broadcast, got %v", ws["dropped"])
	}
}

func TestHandlers(t *testing.T) {
	Get().RecordGeneration()

	rec := httptest.NewRecorder()
	Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("metrics handler returned invalid JSON: %v", err)
	}
	if _, ok := body["generation"]; !ok {
		t.Errorf("Expected generation section in %v", body)
	}

	rec = httptest.NewRecorder()
	PrometheusHandler()(rec, httptest.NewRequest("GET", "/metrics/prometheus", nil))
	if !strings.Contains(rec.Body.String(), "life_generations_total ") {
		t.Errorf("Expected life_generations_total in prometheus output")
	}
}
