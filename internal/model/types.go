package model

import "fmt"

// NetworkStatus annotates a sample with the transport the device was on
// when the position was observed. Diagnostics only; the collector does not
// act on it.
type NetworkStatus string

const (
	NetworkWifi     NetworkStatus = "wifi"
	NetworkCellular NetworkStatus = "cellular"
	NetworkUnknown  NetworkStatus = "unknown"
	NetworkOffline  NetworkStatus = "offline"
)

// PositionSample captures a single observed location.
type PositionSample struct {
	DeviceID      string        `json:"device_id"`
	Longitude     float64       `json:"longitude"`
	Latitude      float64       `json:"latitude"`
	ObservedAt    string        `json:"location_time"`
	Accuracy      *float64      `json:"accuracy,omitempty"`
	NetworkStatus NetworkStatus `json:"network_status,omitempty"`

	// LocalSeq is assigned when the sample enters the durable queue.
	// Zero means the sample was never persisted.
	LocalSeq int64 `json:"local_seq,omitempty"`
}

// Validate checks coordinate and accuracy ranges.
func (s PositionSample) Validate() error {
	if s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", s.Longitude)
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", s.Latitude)
	}
	if s.Accuracy != nil && *s.Accuracy < 0 {
		return fmt.Errorf("accuracy %v must not be negative", *s.Accuracy)
	}
	return nil
}

// LocationBody is the per-sample fragment of the batch upload payload.
type LocationBody struct {
	Longitude     float64       `json:"longitude"`
	Latitude      float64       `json:"latitude"`
	LocationTime  string        `json:"location_time"`
	Accuracy      *float64      `json:"accuracy,omitempty"`
	NetworkStatus NetworkStatus `json:"network_status,omitempty"`
}

// SingleEnvelope is the signed wire payload for one sample.
type SingleEnvelope struct {
	DeviceID      string        `json:"device_id"`
	Longitude     float64       `json:"longitude"`
	Latitude      float64       `json:"latitude"`
	LocationTime  string        `json:"location_time"`
	Accuracy      *float64      `json:"accuracy,omitempty"`
	NetworkStatus NetworkStatus `json:"network_status,omitempty"`
	Timestamp     int64         `json:"timestamp"`
	Signature     string        `json:"signature"`
}

// BatchEnvelope is the signed wire payload for the whole pending queue.
// One timestamp and signature cover the entire batch.
type BatchEnvelope struct {
	DeviceID  string         `json:"device_id"`
	Locations []LocationBody `json:"locations"`
	Timestamp int64          `json:"timestamp"`
	Signature string         `json:"signature"`
}

// Body extracts the unsigned location fragment of a sample.
func (s PositionSample) Body() LocationBody {
	return LocationBody{
		Longitude:     s.Longitude,
		Latitude:      s.Latitude,
		LocationTime:  s.ObservedAt,
		Accuracy:      s.Accuracy,
		NetworkStatus: s.NetworkStatus,
	}
}

// Status is the outcome vocabulary emitted after every decision cycle.
type Status string

const (
	StatusDelivered        Status = "delivered"
	StatusQueuedOffline    Status = "queued-offline"
	StatusQueuedAfterError Status = "queued-after-error"
)

// StatusEvent reports the result of one decision cycle together with the
// number of samples still waiting in the durable queue.
type StatusEvent struct {
	Status     Status
	QueueCount int
	Sample     PositionSample
}
