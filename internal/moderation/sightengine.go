// Package moderation screens uploaded images with the Sightengine
// nudity-2.1 model before they are stored.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"time"

	"github.com/yourview/yourview/internal/apperr"
)

// DefaultEndpoint is Sightengine's synchronous image check API.
const DefaultEndpoint = "https://api.sightengine.com/1.0/check.json"

const model = "nudity-2.1"

// DefaultThresholds rejects explicit content and strongly erotic content.
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		"sexual_activity": 0.50,
		"sexual_display":  0.50,
		"erotica":         0.80,
	}
}

// Checker decides whether an image may be stored. A nil error means the
// image passed.
type Checker interface {
	Check(ctx context.Context, filename, contentType string, data []byte) error
}

// Config configures a Sightengine client.
type Config struct {
	Endpoint       string
	User           string
	Secret         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Thresholds     map[string]float64
}

// Client calls the Sightengine API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client. Zero timeouts and an empty endpoint or threshold
// set fall back to defaults.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 8 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 45 * time.Second
	}
	if len(cfg.Thresholds) == 0 {
		cfg.Thresholds = DefaultThresholds()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
	}
}

type checkResponse struct {
	Status string       `json:"status"`
	Nudity nudityScores `json:"nudity"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// nudityScores holds the raw nudity object. Besides the top-level scores it
// carries nested groups such as suggestive_classes and context.
type nudityScores map[string]json.RawMessage

// score returns the top-level score for label, or 0 when it is absent or
// not a number.
func (n nudityScores) score(label string) float64 {
	var v float64
	if err := json.Unmarshal(n[label], &v); err != nil {
		return 0
	}
	return v
}

// Check submits data to the moderation API. It returns an error wrapping
// apperr.ErrRejected when the image is disallowed or could not be analysed,
// apperr.ErrUpstreamTimeout when the API timed out, and apperr.ErrUpstream
// for any other API failure.
func (c *Client) Check(ctx context.Context, filename, contentType string, data []byte) error {
	if filename == "" {
		filename = "upload"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("models", model)
	_ = mw.WriteField("api_user", c.cfg.User)
	_ = mw.WriteField("api_secret", c.cfg.Secret)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("moderation: build request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("moderation: build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("moderation: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, &body)
	if err != nil {
		return fmt.Errorf("moderation: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("moderation: %w: %v", apperr.ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("moderation: service unavailable: %w: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("moderation: read response: %w: %v", apperr.ErrUpstream, err)
	}

	var result checkResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("moderation: invalid JSON: %w", apperr.ErrUpstream)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unknown"
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return fmt.Errorf("moderation: service error: %s: %w", msg, apperr.ErrUpstream)
	}

	if len(result.Nudity) == 0 {
		return fmt.Errorf("moderation: content analysis failed: %w", apperr.ErrRejected)
	}
	for label, threshold := range c.cfg.Thresholds {
		if result.Nudity.score(label) >= threshold {
			return fmt.Errorf("moderation: image contains disallowed content (%s): %w", label, apperr.ErrRejected)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
