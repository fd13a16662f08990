package rhizome

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
)

type recordedLog struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (l *recordingLogger) Info(msg string, args ...any) { l.add("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any) { l.add("warn", msg, args) }

func (l *recordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, recordedLog{level, msg, args})
}

func testConfig(base string) config.RhizomeConfig {
	return config.RhizomeConfig{
		ScheduleURL:     base + "/appointments/daycare",
		ScheduleCode:    "dog-123",
		Token:           "daycare-token",
		BookingURL:      base + "/book",
		BookingTemplate: `{"created":CREATED_AT,"in":"DROPOFF_TIME"}`,
		PhotosURL:       base + "/contents/photos",
		NewsURL:         "https://example.com/news.md",
	}
}

func TestFetchSchedule(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	var got *http.Request

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`{"appointments":[{"id":1}]}`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), WithClock(func() time.Time { return now }))
	body, err := c.FetchSchedule(context.Background())
	if err != nil {
		t.Fatalf("FetchSchedule() error = %v", err)
	}
	if string(body) != `{"appointments":[{"id":1}]}` {
		t.Errorf("body = %s", body)
	}

	if got.URL.Path != "/appointments/daycare/dog-123" {
		t.Errorf("path = %q", got.URL.Path)
	}
	if v := got.URL.Query().Get("startDate"); v != strconv.FormatInt(now.UnixMilli(), 10) {
		t.Errorf("startDate = %q", v)
	}
	if v := got.URL.Query().Get("endDate"); v != strconv.FormatInt(now.AddDate(1, 0, 0).UnixMilli(), 10) {
		t.Errorf("endDate = %q", v)
	}
	if v := got.Header.Get("Authorization"); v != "Bearer daycare-token" {
		t.Errorf("Authorization = %q", v)
	}
	if got.Header.Get("Origin") == "" || got.Header.Get("User-Agent") == "" {
		t.Error("browser headers missing")
	}
}

func TestFetchSchedule_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, "boom", ErrUpstreamStatus},
		{"unauthorized", http.StatusUnauthorized, `{"error":"expired"}`, ErrUpstreamStatus},
		{"not json", http.StatusOK, "<html>", ErrMalformedBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body)) //nolint:errcheck // test server
			}))
			defer srv.Close()

			_, err := NewClient(testConfig(srv.URL)).FetchSchedule(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchSchedule() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetchSchedule_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := NewClient(testConfig(srv.URL)).FetchSchedule(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FetchSchedule() error = %v, want deadline exceeded", err)
	}
}

func TestFetchPhotos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header without photos token")
		}
		listing := `[
			{"name":"a.jpg","download_url":"https://raw.example/a.jpg"},
			{"name":"dir","download_url":null},
			{"name":"b.jpg","download_url":"https://raw.example/b.jpg"}
		]`
		w.Write([]byte(listing)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	feed, err := NewClient(testConfig(srv.URL)).FetchPhotos(context.Background())
	if err != nil {
		t.Fatalf("FetchPhotos() error = %v", err)
	}
	if feed.News != "https://example.com/news.md" {
		t.Errorf("News = %q", feed.News)
	}
	if len(feed.Photos) != 2 || feed.Photos[0] != "https://raw.example/a.jpg" || feed.Photos[1] != "https://raw.example/b.jpg" {
		t.Errorf("Photos = %v", feed.Photos)
	}
}

func TestFetchPhotos_Token(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.PhotosToken = "gh-token"
	feed, err := NewClient(cfg).FetchPhotos(context.Background())
	if err != nil {
		t.Fatalf("FetchPhotos() error = %v", err)
	}
	if feed.Photos == nil || len(feed.Photos) != 0 {
		t.Errorf("Photos = %#v, want empty non-nil slice", feed.Photos)
	}
}

func TestFetchPhotos_NotAList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"message":"rate limited"}`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	if _, err := NewClient(testConfig(srv.URL)).FetchPhotos(context.Background()); !errors.Is(err, ErrMalformedBody) {
		t.Errorf("FetchPhotos() error = %v, want ErrMalformedBody", err)
	}
}

func TestSubmitBooking(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"accepted", http.StatusOK, "info"},
		{"rejected", http.StatusBadRequest, "warn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody, gotAuth, gotMethod string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
				gotBody, gotAuth, gotMethod = string(b), r.Header.Get("Authorization"), r.Method
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			logger := &recordingLogger{}
			c := NewClient(testConfig(srv.URL), WithLogger(logger))
			req := BookingRequest{CreatedAt: 42, DropoffLocalTime: "09:00", PickupLocalTime: "17:30"}

			if err := c.SubmitBooking(context.Background(), req); err != nil {
				t.Fatalf("SubmitBooking() error = %v", err)
			}
			if gotMethod != http.MethodPost || gotAuth != "Bearer daycare-token" {
				t.Errorf("method/auth = %s %q", gotMethod, gotAuth)
			}
			if gotBody != `{"created":42,"in":"09%3A00"}` {
				t.Errorf("body = %s", gotBody)
			}
			if len(logger.entries) != 1 || logger.entries[0].level != tt.wantLevel {
				t.Errorf("log entries = %+v, want one %s entry", logger.entries, tt.wantLevel)
			}
		})
	}
}

func TestSubmitBooking_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := testConfig(srv.URL)
	srv.Close()

	if err := NewClient(cfg).SubmitBooking(context.Background(), BookingRequest{}); err == nil {
		t.Error("SubmitBooking() to closed server should fail")
	}
}
