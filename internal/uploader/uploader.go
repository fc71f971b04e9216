package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"trackpoint/location-agent/internal/model"
	"trackpoint/location-agent/internal/queue"
	"trackpoint/location-agent/internal/reachability"
	"trackpoint/location-agent/internal/signer"
)

const (
	singlePath = "/api/v1/location"
	batchPath  = "/api/v1/location/batch"

	requestTimeout = 10 * time.Second
)

// Outcome reports whether a sample reached the collector. A false value
// means the sample was durably queued instead.
type Outcome struct {
	Delivered bool
}

// Uploader gets exactly one sample (or the whole queue) to the collector,
// or durably remembers it for later.
type Uploader struct {
	logger    *slog.Logger
	baseURL   string
	deviceID  string
	apiSecret string
	queue     *queue.Queue
	checker   reachability.Checker
	client    *http.Client
	now       func() time.Time
}

// New constructs an uploader addressing the collector at baseURL.
func New(baseURL, deviceID, apiSecret string, q *queue.Queue, checker reachability.Checker, logger *slog.Logger) *Uploader {
	return &Uploader{
		logger:    logger,
		baseURL:   baseURL,
		deviceID:  deviceID,
		apiSecret: apiSecret,
		queue:     q,
		checker:   checker,
		client:    &http.Client{Timeout: requestTimeout},
		now:       time.Now,
	}
}

// Upload attempts to deliver one sample. If the network is unreachable or
// the request fails, the sample is persisted into the durable queue and the
// outcome reports Delivered=false. The only error this returns is a
// persistence write failure, which must not be swallowed.
func (u *Uploader) Upload(ctx context.Context, sample model.PositionSample) (Outcome, error) {
	if !u.checker.Reachable() {
		if err := u.queue.Add(ctx, sample); err != nil {
			return Outcome{}, err
		}
		u.logger.Info("network unreachable, sample queued", "pending", u.queue.Count())
		return Outcome{Delivered: false}, nil
	}

	ts := u.now().Unix()
	envelope := model.SingleEnvelope{
		DeviceID:      u.deviceID,
		Longitude:     sample.Longitude,
		Latitude:      sample.Latitude,
		LocationTime:  sample.ObservedAt,
		Accuracy:      sample.Accuracy,
		NetworkStatus: sample.NetworkStatus,
		Timestamp:     ts,
		Signature:     signer.Sign(u.deviceID, ts, u.apiSecret),
	}

	if err := u.post(ctx, singlePath, envelope); err != nil {
		u.logger.Warn("single upload failed, sample queued", "error", err)
		if qErr := u.queue.Add(ctx, sample); qErr != nil {
			return Outcome{}, qErr
		}
		return Outcome{Delivered: false}, nil
	}

	// Connectivity just proved itself; drain the backlog opportunistically.
	// Flush failure does not change this call's outcome.
	if _, err := u.FlushQueue(ctx); err != nil {
		u.logger.Warn("post-upload flush failed", "error", err)
	}

	return Outcome{Delivered: true}, nil
}

// FlushQueue transmits the entire pending queue as one batch, in insertion
// order, with a single timestamp and signature. On success the queue is
// cleared and the flushed count returned; on any request failure the queue
// is left untouched and the count is 0.
func (u *Uploader) FlushQueue(ctx context.Context) (int, error) {
	if !u.checker.Reachable() {
		return 0, nil
	}

	pending := u.queue.List()
	if len(pending) == 0 {
		return 0, nil
	}

	locations := make([]model.LocationBody, 0, len(pending))
	for _, sample := range pending {
		locations = append(locations, sample.Body())
	}

	ts := u.now().Unix()
	envelope := model.BatchEnvelope{
		DeviceID:  u.deviceID,
		Locations: locations,
		Timestamp: ts,
		Signature: signer.Sign(u.deviceID, ts, u.apiSecret),
	}

	if err := u.post(ctx, batchPath, envelope); err != nil {
		u.logger.Warn("batch upload failed, queue retained", "pending", len(pending), "error", err)
		return 0, nil
	}

	if err := u.queue.Clear(ctx); err != nil {
		return 0, err
	}

	u.logger.Info("flushed pending samples", "count", len(pending))
	return len(pending), nil
}

// NetworkType exposes the transport classifier for sample annotation.
func (u *Uploader) NetworkType() model.NetworkStatus {
	return u.checker.NetworkType()
}

// Reachable exposes the advisory reachability answer.
func (u *Uploader) Reachable() bool {
	return u.checker.Reachable()
}

// PendingCount returns the number of samples waiting in the durable queue.
func (u *Uploader) PendingCount() int {
	return u.queue.Count()
}

func (u *Uploader) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}

	return nil
}
