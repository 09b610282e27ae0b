package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/r9s-ai/seo-router/internal/metrics"
)

const maxBodyBytes = 1 << 20

var (
	// ErrDecode is returned when the metadata endpoint body is not valid JSON.
	ErrDecode = errors.New("metadata: decode response")
	// ErrTooLarge is returned when the metadata endpoint body exceeds 1 MiB.
	ErrTooLarge = errors.New("metadata: response body too large")
)

// Resolver fetches a Record for a request path from the endpoint template
// of the route the path matched. It makes exactly one call and never retries.
type Resolver struct {
	HTTP    *http.Client
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Resolve fetches and decodes the metadata for path from template. A non-2xx
// status is logged but its body is still decoded.
func (r *Resolver) Resolve(ctx context.Context, path, template string) (Record, error) {
	endpoint := EndpointFor(path, template)
	start := time.Now()
	rec, status, err := r.fetch(ctx, endpoint)
	elapsed := time.Since(start)

	logger := r.logger().With(zap.String("endpoint", endpoint), zap.Duration("latency", elapsed))
	if err != nil {
		r.Metrics.ObserveMetadataFetch("error", elapsed)
		logger.Warn("metadata fetch failed", zap.Error(err))
		return Record{}, err
	}
	if status < 200 || status > 299 {
		logger.Warn("metadata endpoint returned non-2xx status", zap.Int("status", status))
	}
	r.Metrics.ObserveMetadataFetch("ok", elapsed)
	logger.Debug("metadata fetched",
		zap.String("title", rec.Title),
		zap.String("description", rec.Description),
		zap.String("image", rec.Image),
		zap.String("keywords", rec.Keywords),
	)
	return rec, nil
}

func (r *Resolver) fetch(ctx context.Context, endpoint string) (Record, int, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Record{}, 0, fmt.Errorf("metadata: build request %q: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client().Do(req)
	if err != nil {
		return Record{}, 0, fmt.Errorf("metadata: get %q: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Record{}, resp.StatusCode, fmt.Errorf("metadata: read %q: %w", endpoint, err)
	}
	if len(body) > maxBodyBytes {
		return Record{}, resp.StatusCode, fmt.Errorf("%w: %q exceeds %d bytes", ErrTooLarge, endpoint, maxBodyBytes)
	}
	rec, err := Decode(body)
	if err != nil {
		return Record{}, resp.StatusCode, err
	}
	return rec, resp.StatusCode, nil
}

// Decode parses a metadata endpoint body.
func Decode(body []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if dec.More() {
		return Record{}, fmt.Errorf("%w: trailing data after JSON value", ErrDecode)
	}
	return RecordFromJSON(v), nil
}

func (r *Resolver) client() *http.Client {
	if r.HTTP != nil {
		return r.HTTP
	}
	return http.DefaultClient
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}
