package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveFetch(t *testing.T) {
	m := New()

	m.ObserveFetch("rhizome", nil, 120*time.Millisecond)
	m.ObserveFetch("rhizome", errors.New("timeout"), time.Second)
	m.ObserveFetch("rhizome", errors.New("timeout"), time.Second)

	if got := testutil.ToFloat64(m.FetchTotal.WithLabelValues("rhizome", ResultSuccess)); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FetchTotal.WithLabelValues("rhizome", ResultFailed)); got != 2 {
		t.Errorf("failed count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SnapshotUpdated.WithLabelValues("rhizome")); got <= 0 {
		t.Errorf("snapshot updated gauge = %v, want unix time", got)
	}
}

func TestObserveCommandAndReconcile(t *testing.T) {
	m := New()

	m.ObserveCommand("car", "lock", nil)
	m.ObserveCommand("car", "lock", errors.New("not connected"))
	m.ObserveReconcile(nil)

	if got := testutil.ToFloat64(m.CommandTotal.WithLabelValues("car", "lock", ResultFailed)); got != 1 {
		t.Errorf("failed command count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ReconcileTotal.WithLabelValues(ResultSuccess)); got != 1 {
		t.Errorf("reconcile count = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveCommand("mopbot", "on", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body) //nolint:errcheck // recorder body
	if !strings.Contains(string(body), `fluxhaus_command_total{command="on",device="mopbot",result="success"} 1`) {
		t.Errorf("exposition missing command counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("exposition missing Go runtime collector")
	}
}
