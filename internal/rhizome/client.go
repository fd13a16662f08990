package rhizome

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
)

const (
	defaultHTTPTimeout = 30 * time.Second

	// scheduleWindowYears is how far ahead appointments are requested.
	scheduleWindowYears = 1

	// maxBodySize caps upstream bodies read into memory.
	maxBodySize = 8 << 20

	// logBodyLimit caps how much of a booking response is logged.
	logBodyLimit = 512
)

// browserHeaders are sent to the daycare API, which rejects requests that
// do not look like they come from its web app.
var browserHeaders = map[string]string{
	"Accept-Language": "en-CA,en-US;q=0.9,en;q=0.8",
	"Origin":          "https://www.dogtopia.com",
	"Referer":         "https://www.dogtopia.com/",
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Sec-Fetch-Site":  "cross-site",
	"Sec-Fetch-Mode":  "cors",
	"Sec-Fetch-Dest":  "empty",
	"Priority":        "u=3, i",
}

// Logger is the logging surface the client needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Client calls the daycare and photo-feed upstreams.
type Client struct {
	cfg        config.RhizomeConfig
	httpClient *http.Client
	logger     Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides the time source used for the schedule window.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a Client for the configured upstreams.
func NewClient(cfg config.RhizomeConfig, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     noopLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchSchedule returns the daycare appointments from now until one year
// out, as the raw JSON document the API returned.
func (c *Client) FetchSchedule(ctx context.Context) (json.RawMessage, error) {
	start := c.now()
	end := start.AddDate(scheduleWindowYears, 0, 0)

	u, err := url.Parse(strings.TrimRight(c.cfg.ScheduleURL, "/") + "/" + url.PathEscape(c.cfg.ScheduleCode))
	if err != nil {
		return nil, fmt.Errorf("building schedule URL: %w", err)
	}
	q := u.Query()
	q.Set("startDate", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("endDate", strconv.FormatInt(end.UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := c.newDaycareRequest(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching schedule: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("fetching schedule: %w", ErrMalformedBody)
	}
	return json.RawMessage(body), nil
}

// PhotoFeed is the cached photo/news payload.
type PhotoFeed struct {
	News   string   `json:"news"`
	Photos []string `json:"photos"`
}

// githubFile is one entry of a GitHub contents listing.
type githubFile struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

// FetchPhotos lists the photo directory and returns the download URLs
// together with the news document URL.
func (c *Client) FetchPhotos(ctx context.Context) (PhotoFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.PhotosURL, nil)
	if err != nil {
		return PhotoFeed{}, fmt.Errorf("building photos request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.cfg.PhotosToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.PhotosToken)
	}

	body, err := c.do(req)
	if err != nil {
		return PhotoFeed{}, fmt.Errorf("fetching photos: %w", err)
	}

	var files []githubFile
	if err := json.Unmarshal(body, &files); err != nil {
		return PhotoFeed{}, fmt.Errorf("fetching photos: %w: %w", ErrMalformedBody, err)
	}

	feed := PhotoFeed{News: c.cfg.NewsURL, Photos: make([]string, 0, len(files))}
	for _, f := range files {
		if f.DownloadURL != "" {
			feed.Photos = append(feed.Photos, f.DownloadURL)
		}
	}
	return feed, nil
}

// SubmitBooking renders the booking template for r and posts it.
//
// The upstream response is logged, at Warn for non-2xx, and otherwise
// ignored. Only failures to send the request are returned.
func (c *Client) SubmitBooking(ctx context.Context, r BookingRequest) error {
	payload := r.Render(c.cfg.BookingTemplate)

	req, err := c.newDaycareRequest(ctx, http.MethodPost, c.cfg.BookingURL, strings.NewReader(payload))
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submitting booking: %w", err)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, logBodyLimit)) //nolint:errcheck // logged only
	args := []any{
		"status", resp.StatusCode,
		"dropoff", r.DropoffLocalTime,
		"pickup", r.PickupLocalTime,
		"response", string(snippet),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("booking submission rejected upstream", args...)
	} else {
		c.logger.Info("booking submitted", args...)
	}
	return nil
}

func (c *Client) newDaycareRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building daycare request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	return req, nil
}

// do executes req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d %s", ErrUpstreamStatus, resp.StatusCode, bytes.TrimSpace(truncate(body, logBodyLimit)))
	}
	return body, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
