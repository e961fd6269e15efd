package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncStart("proj", "a")
	IncStart("proj", "a")
	IncRestart("proj", "a")
	IncStop("proj", "a")
	ObserveReadinessWait("proj", "a", 1.25)
	RecordStateTransition("proj", "a", "starting", "running")
	SetRunningCount(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"mcproc_process_starts_total":            false,
		"mcproc_process_stops_total":             false,
		"mcproc_process_restarts_total":          false,
		"mcproc_process_readiness_wait_seconds":  false,
		"mcproc_process_state_transitions_total": false,
		"mcproc_process_running_count":           false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	regOK.Store(false)
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	IncStart("proj", "x")

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	s := string(b)
	if !strings.Contains(s, "mcproc_process_starts_total") {
		t.Fatalf("metrics output missing starts_total: %s", s[:min(200, len(s))])
	}
}

func TestConcurrentIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			IncStart("proj", "c")
			IncRestart("proj", "c")
			IncStop("proj", "c")
		}()
	}
	wg.Wait()
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("gather: %v", err)
	}
}

func TestMetricsBeforeRegister(t *testing.T) {
	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	IncStart("proj", "test")
	IncRestart("proj", "test")
	IncStop("proj", "test")
	ObserveReadinessWait("proj", "test", 1.0)
	RecordStateTransition("proj", "test", "starting", "running")
	SetRunningCount(0)

	// No crash means success.
}

func TestRegisterError(t *testing.T) {
	errorRegisterer := &errorRegisterer{shouldError: true}

	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	err := Register(errorRegisterer)
	if err == nil {
		t.Fatal("Register should return error from failing registerer")
	}
	if err.Error() != "test registration error" {
		t.Fatalf("unexpected error: %v", err)
	}
}

type errorRegisterer struct {
	shouldError bool
}

func (e *errorRegisterer) Register(prometheus.Collector) error {
	if e.shouldError {
		return errors.New("test registration error")
	}
	return nil
}

func (e *errorRegisterer) MustRegister(...prometheus.Collector) {}
func (e *errorRegisterer) Unregister(prometheus.Collector) bool { return false }
