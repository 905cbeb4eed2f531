package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewTimer tests timer creation
func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}

	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}

	// Verify start time is recent (within last second)
	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}
}

// TestTimerObserveDuration tests histogram observation
func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer.ObserveDuration(histogram)

	var m dto.Metric
	if err := histogram.Write(&m); err != nil {
		t.Fatalf("histogram.Write() error: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
	if m.GetHistogram().GetSampleSum() <= 0 {
		t.Error("ObserveDuration() recorded a non-positive duration")
	}
}

// TestMultipleTimers tests that multiple timers work independently
func TestMultipleTimers(t *testing.T) {
	timer1 := NewTimer()
	time.Sleep(20 * time.Millisecond)
	timer2 := NewTimer()

	h1 := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "t1", Help: "t1"})
	h2 := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "t2", Help: "t2"})

	timer1.ObserveDuration(h1)
	timer2.ObserveDuration(h2)

	var m1, m2 dto.Metric
	_ = h1.Write(&m1)
	_ = h2.Write(&m2)

	if m1.GetHistogram().GetSampleSum() <= m2.GetHistogram().GetSampleSum() {
		t.Errorf("timer1 should have recorded a longer duration: timer1=%v, timer2=%v",
			m1.GetHistogram().GetSampleSum(), m2.GetHistogram().GetSampleSum())
	}
}
