package reporter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"trackpoint/location-agent/internal/config"
	"trackpoint/location-agent/internal/model"
	"trackpoint/location-agent/internal/uploader"
)

// UploadClient is the delivery collaborator the engine dispatches to.
type UploadClient interface {
	Upload(ctx context.Context, sample model.PositionSample) (uploader.Outcome, error)
	Reachable() bool
	NetworkType() model.NetworkStatus
	PendingCount() int
}

// Reporter consumes the position stream, decides per sample whether it
// warrants transmission, and dispatches triggered uploads without blocking
// ingestion. Configuration is re-read through the injected accessor on
// every decision.
type Reporter struct {
	logger *slog.Logger
	cfg    func() config.Config
	client UploadClient

	samples chan model.PositionSample
	events  chan model.StatusEvent
	now     func() time.Time

	mu             sync.Mutex
	lastReportTime time.Time // zero means unset
	lastLatitude   float64
	lastLongitude  float64
	hasBaseline    bool
	lastSample     model.PositionSample
	hasSample      bool
}

// New constructs the decision engine. cfg is called on every decision so
// settings changes from the host take effect without restart.
func New(cfg func() config.Config, client UploadClient, logger *slog.Logger) *Reporter {
	return &Reporter{
		logger:  logger,
		cfg:     cfg,
		client:  client,
		samples: make(chan model.PositionSample, 64),
		events:  make(chan model.StatusEvent, 64),
		now:     time.Now,
	}
}

// Submit offers one sample to the engine. It never blocks; when the intake
// buffer is full the sample is dropped with a warning, since a fresher one
// is already on the way.
func (r *Reporter) Submit(sample model.PositionSample) {
	select {
	case r.samples <- sample:
	default:
		r.logger.Warn("sample intake full, dropping sample")
	}
}

// Events exposes the status stream the host subscribes to. One event is
// emitted after every decision cycle that triggered an upload.
func (r *Reporter) Events() <-chan model.StatusEvent {
	return r.events
}

// Run consumes the sample stream until the context is cancelled. Trigger
// evaluation is non-blocking; each triggered upload runs as its own
// goroutine so in-flight network calls never stall ingestion.
func (r *Reporter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sample := <-r.samples:
			r.ingest(ctx, sample)
		}
	}
}

func (r *Reporter) ingest(ctx context.Context, sample model.PositionSample) {
	if err := sample.Validate(); err != nil {
		r.logger.Warn("discarding invalid sample", "error", err)
		return
	}

	if sample.NetworkStatus == "" {
		sample.NetworkStatus = r.client.NetworkType()
	}

	r.mu.Lock()
	r.lastSample = sample
	r.hasSample = true
	triggered := r.shouldTriggerLocked(sample)
	r.mu.Unlock()

	if !triggered {
		return
	}

	go r.dispatch(ctx, sample)
}

// ForceUpload bypasses trigger evaluation and uploads the best currently
// known sample. The baseline only advances if that upload itself succeeds,
// under the same rule as a triggered upload.
func (r *Reporter) ForceUpload(ctx context.Context) error {
	r.mu.Lock()
	sample, ok := r.lastSample, r.hasSample
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("no position observed yet")
	}

	r.dispatch(ctx, sample)
	return nil
}

func (r *Reporter) shouldTriggerLocked(sample model.PositionSample) bool {
	cfg := r.cfg()

	switch cfg.UploadMode {
	case config.ModeDisplacement:
		if !r.hasBaseline {
			return true
		}
		d := distanceMeters(r.lastLatitude, r.lastLongitude, sample.Latitude, sample.Longitude)
		return d >= cfg.DistanceThreshold
	default:
		if r.lastReportTime.IsZero() {
			return true
		}
		return r.now().Sub(r.lastReportTime) >= cfg.UploadInterval
	}
}

func (r *Reporter) dispatch(ctx context.Context, sample model.PositionSample) {
	outcome, err := r.client.Upload(ctx, sample)
	if err != nil {
		// Persistence write failure: the sample is neither delivered nor
		// durably saved. Do not advance the baseline so the next sample
		// retries promptly.
		r.logger.Error("upload could not be delivered or queued", "error", err)
		r.emit(model.StatusQueuedAfterError, sample)
		return
	}

	status := model.StatusQueuedAfterError
	advance := false

	switch {
	case outcome.Delivered:
		status = model.StatusDelivered
		advance = true
	case !r.client.Reachable():
		// Queued because there is no connectivity at all. The baseline
		// still advances, otherwise every sample while offline would
		// re-queue redundantly.
		status = model.StatusQueuedOffline
		advance = true
	}

	if advance {
		r.advanceBaseline(sample)
	}

	r.emit(status, sample)
}

func (r *Reporter) advanceBaseline(sample model.PositionSample) {
	ts, err := time.Parse(time.RFC3339Nano, sample.ObservedAt)
	if err != nil {
		if ts, err = time.Parse(time.RFC3339, sample.ObservedAt); err != nil {
			ts = r.now()
		}
	}

	r.mu.Lock()
	r.lastReportTime = ts
	r.lastLatitude = sample.Latitude
	r.lastLongitude = sample.Longitude
	r.hasBaseline = true
	r.mu.Unlock()
}

func (r *Reporter) emit(status model.Status, sample model.PositionSample) {
	event := model.StatusEvent{
		Status:     status,
		QueueCount: r.client.PendingCount(),
		Sample:     sample,
	}

	select {
	case r.events <- event:
	default:
		r.logger.Warn("status subscriber lagging, dropping event", "status", status)
	}
}

const earthRadiusMeters = 6_371_000

// distanceMeters computes the great-circle distance between two coordinates.
func distanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
