package engine

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestSharedDataClone(t *testing.T) {
	data := SharedData{
		"id":     json.Number("7"),
		"name":   "net1",
		"tags":   []any{"a", "b"},
		"nested": map[string]any{"zones": []any{map[string]any{"name": "z1", "main": true}}},
		"empty":  nil,
	}

	cp, err := data.Clone()
	if err != nil {
		t.Fatalf("clone failed: %v", err)
	}
	if !reflect.DeepEqual(cp, data) {
		t.Errorf("expected %v, got %v", data, cp)
	}

	cp.Map("nested")["zones"] = nil
	if data.Map("nested")["zones"] == nil {
		t.Error("clone shares nested maps with the original")
	}

	if _, err := (SharedData{"ch": make(chan int)}).Clone(); err == nil {
		t.Error("expected error for a value that is not JSON serializable")
	}
}

func TestSharedDataAccessors(t *testing.T) {
	var decoded SharedData
	_ = json.Unmarshal([]byte(`{"id": 42, "cid": "10", "active": true, "flag": "true", "tags": ["x", "y"], "tag": "z"}`), &decoded)

	if id, ok := decoded.Int64("id"); !ok || id != 42 {
		t.Errorf("Int64(id) = %d, %v", id, ok)
	}
	if id, ok := decoded.Int64("cid"); !ok || id != 10 {
		t.Errorf("Int64(cid) = %d, %v", id, ok)
	}
	if _, ok := decoded.Int64("missing"); ok {
		t.Error("expected missing key to report false")
	}
	if decoded.String("id") != "42" {
		t.Errorf("String(id) = %q", decoded.String("id"))
	}
	if !decoded.Bool("active") || !decoded.Bool("flag") || decoded.Bool("missing") {
		t.Error("unexpected Bool results")
	}
	if got := decoded.Strings("tags"); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("Strings(tags) = %v", got)
	}
	if got := decoded.Strings("tag"); !reflect.DeepEqual(got, []string{"z"}) {
		t.Errorf("Strings(tag) = %v", got)
	}
}

func TestSharedDataNumbers(t *testing.T) {
	cp, err := SharedData{"id": int64(9007199254740993), "ratio": 0.5}.Clone()
	if err != nil {
		t.Fatalf("clone failed: %v", err)
	}
	if id, ok := cp.Int64("id"); !ok || id != 9007199254740993 {
		t.Errorf("Int64(id) = %d, %v", id, ok)
	}
	if cp.String("ratio") != "0.5" {
		t.Errorf("String(ratio) = %q", cp.String("ratio"))
	}
	if _, ok := cp.Int64("ratio"); ok {
		t.Error("expected a fractional json.Number to be rejected")
	}

	tests := []struct {
		value any
		want  int64
		ok    bool
	}{
		{float64(12), 12, true},
		{1.7, 0, false},
		{-0.5, 0, false},
		{1e300, 0, false},
		{json.Number("42"), 42, true},
		{"17", 17, true},
	}
	for _, tt := range tests {
		got, ok := toInt64(tt.value)
		if got != tt.want || ok != tt.ok {
			t.Errorf("toInt64(%v) = %d, %v; want %d, %v", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestJobProgress(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want int
	}{
		{"pending", Job{Status: JobStatusPending, Delta: 5}, 0},
		{"halfway", Job{Status: JobStatusRunning, Delta: 4, StagesDone: 2}, 50},
		{"capped", Job{Status: JobStatusRunning, Delta: 2, StagesDone: 5}, 99},
		{"no delta", Job{Status: JobStatusRunning}, 0},
		{"done", Job{Status: JobStatusSuccess, Delta: 5, StagesDone: 1}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.job.Progress(); got != tt.want {
				t.Errorf("Progress() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestJobDuration(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	end := start.Add(30 * time.Second)
	job := Job{StartedAt: &start, CompletedAt: &end}
	if job.Duration() != 30*time.Second {
		t.Errorf("Duration() = %s", job.Duration())
	}
	if (&Job{}).Duration() != 0 {
		t.Error("expected zero duration for a job that never started")
	}
}

func TestEntityAccessors(t *testing.T) {
	e := Entity{"id": "ext-1", "status": "ERROR", "status_reason": "quota exceeded"}
	if e.ID() != "ext-1" || e.Status() != "ERROR" || e.Reason() != "quota exceeded" {
		t.Errorf("unexpected entity accessors: %s %s %s", e.ID(), e.Status(), e.Reason())
	}
}
