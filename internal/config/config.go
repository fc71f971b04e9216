package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// UploadMode selects the reporting trigger policy. The two modes are
// mutually exclusive.
type UploadMode string

const (
	ModeInterval     UploadMode = "interval"
	ModeDisplacement UploadMode = "displacement"
)

// Config lists the tunable parameters for the location agent.
type Config struct {
	UploadMode        UploadMode
	UploadInterval    time.Duration
	DistanceThreshold float64 // meters
	ServerBaseURL     string
	APISecret         string
	DatabasePath      string
	PositionBroker    string
	PositionTopic     string
	LogLevel          string
}

const (
	defaultUploadMode        = ModeInterval
	defaultUploadIntervalMS  = 60_000
	defaultDistanceThreshold = 50
	defaultDatabasePath      = "data/trackpoint.db"
	defaultPositionBroker    = "tcp://localhost:1883"
	defaultPositionTopic     = "positions/#"
	defaultLogLevel          = "info"
)

// The collector recognizes a fixed set of reporting intervals and
// displacement thresholds; anything else is rejected at load time.
var (
	allowedIntervalMillis = []int{10_000, 30_000, 60_000, 300_000}
	allowedThresholds     = []float64{10, 30, 50, 100}
)

// Load derives configuration values from environment variables, falling
// back to defaults. Malformed or unrecognized values fail here so they
// never reach the uploader.
func Load() (Config, error) {
	cfg := Config{
		UploadMode:        defaultUploadMode,
		UploadInterval:    defaultUploadIntervalMS * time.Millisecond,
		DistanceThreshold: defaultDistanceThreshold,
		DatabasePath:      defaultDatabasePath,
		PositionBroker:    defaultPositionBroker,
		PositionTopic:     defaultPositionTopic,
		LogLevel:          defaultLogLevel,
	}

	if v := os.Getenv("TRACKPOINT_UPLOAD_MODE"); v != "" {
		switch strings.ToLower(v) {
		case string(ModeInterval):
			cfg.UploadMode = ModeInterval
		case string(ModeDisplacement):
			cfg.UploadMode = ModeDisplacement
		default:
			return Config{}, fmt.Errorf("invalid TRACKPOINT_UPLOAD_MODE %q (interval or displacement)", v)
		}
	}

	if v := os.Getenv("TRACKPOINT_UPLOAD_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRACKPOINT_UPLOAD_INTERVAL_MS: %w", err)
		}
		if !containsInt(allowedIntervalMillis, ms) {
			return Config{}, fmt.Errorf("TRACKPOINT_UPLOAD_INTERVAL_MS must be one of %v, got %d", allowedIntervalMillis, ms)
		}
		cfg.UploadInterval = time.Duration(ms) * time.Millisecond
	}

	if v := os.Getenv("TRACKPOINT_DISTANCE_THRESHOLD_M"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRACKPOINT_DISTANCE_THRESHOLD_M: %w", err)
		}
		if !containsFloat(allowedThresholds, m) {
			return Config{}, fmt.Errorf("TRACKPOINT_DISTANCE_THRESHOLD_M must be one of %v, got %v", allowedThresholds, m)
		}
		cfg.DistanceThreshold = m
	}

	if v := os.Getenv("TRACKPOINT_SERVER_URL"); v != "" {
		cfg.ServerBaseURL = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("TRACKPOINT_API_SECRET"); v != "" {
		cfg.APISecret = v
	}

	if v := os.Getenv("TRACKPOINT_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}

	if v := os.Getenv("TRACKPOINT_POSITION_BROKER"); v != "" {
		cfg.PositionBroker = v
	}

	if v := os.Getenv("TRACKPOINT_POSITION_TOPIC"); v != "" {
		cfg.PositionTopic = v
	}

	if v := os.Getenv("TRACKPOINT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

func containsInt(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsFloat(set []float64, v float64) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
