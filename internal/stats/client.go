// Package stats talks to the hit-counting statistics service.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
)

// Recorder records endpoint hits.
type Recorder interface {
	// Hit records a visit of uri from ip and reports whether it is the first
	// visit for that (uri, ip) pair.
	Hit(ctx context.Context, uri, ip string) (firstTime bool, err error)
}

// ErrUnexpectedStatus is returned when the service answers outside the hit
// protocol (201 first time, 202 repeat).
var ErrUnexpectedStatus = errors.New("stats: unexpected response status")

type hitRequest struct {
	App       string `json:"app"`
	URI       string `json:"uri"`
	IP        string `json:"ip"`
	Timestamp string `json:"timestamp"`
}

// Client is an HTTP Recorder.
type Client struct {
	baseURL string
	app     string
	http    *http.Client
	now     func() time.Time
}

// NewClient returns a Client posting to baseURL/hit on behalf of app.
func NewClient(baseURL, app string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		app:     app,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// Hit implements Recorder.
func (c *Client) Hit(ctx context.Context, uri, ip string) (bool, error) {
	body, err := json.Marshal(hitRequest{
		App:       c.app,
		URI:       uri,
		IP:        ip,
		Timestamp: model.FormatDateTime(c.now()),
	})
	if err != nil {
		return false, fmt.Errorf("stats: encode hit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hit", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("stats: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("stats: post hit: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		return true, nil
	case http.StatusAccepted:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}

// Disabled is a Recorder that never reports a first-time hit.
type Disabled struct{}

// Hit implements Recorder.
func (Disabled) Hit(context.Context, string, string) (bool, error) {
	return false, nil
}

var (
	_ Recorder = (*Client)(nil)
	_ Recorder = Disabled{}
)
