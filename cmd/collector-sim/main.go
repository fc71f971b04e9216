package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grandcat/zeroconf"

	"trackpoint/location-agent/internal/model"
	"trackpoint/location-agent/internal/signer"
)

// collector-sim is a development stand-in for the real collector: it
// verifies request signatures and logs what it receives, so the agent can
// be exercised end to end on a laptop.
func main() {
	port := flag.Int("port", 8080, "HTTP listen port")
	secret := flag.String("secret", "dev-secret", "Shared API secret for signature verification")
	announce := flag.Bool("mdns", true, "Advertise the collector via mDNS")

	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	c := &collector{logger: logger, secret: *secret}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/location", c.handleSingle)
	mux.HandleFunc("/api/v1/location/batch", c.handleBatch)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *announce {
		mdns, err := registerMDNS(*port)
		if err != nil {
			logger.Error("mDNS advertisement failed", "error", err)
			os.Exit(1)
		}
		defer mdns.Shutdown()
		logger.Info("mDNS advertisement started", "service", mdnsServiceType, "port", *port)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("collector listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
		logger.Info("collector stopped")
	case err := <-errCh:
		logger.Error("collector terminated", "error", err)
		os.Exit(1)
	}
}

const (
	mdnsServiceType = "_trackpoint-collector._tcp"
	mdnsDomain      = "local."
)

func registerMDNS(port int) (*zeroconf.Server, error) {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "trackpoint"
	}

	instance := fmt.Sprintf("TrackPoint Collector (%s)", hostname)
	txt := []string{"proto=v1", "tls=0"}

	return zeroconf.Register(instance, mdnsServiceType, mdnsDomain, port, txt, nil)
}

type collector struct {
	logger *slog.Logger
	secret string
}

func (c *collector) handleSingle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var envelope model.SingleEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if !signer.Verify(envelope.DeviceID, envelope.Timestamp, c.secret, envelope.Signature) {
		c.logger.Warn("signature mismatch", "device", envelope.DeviceID)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	c.logger.Info("received location",
		"device", envelope.DeviceID,
		"latitude", envelope.Latitude,
		"longitude", envelope.Longitude,
		"observed_at", envelope.LocationTime,
		"network", envelope.NetworkStatus,
	)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"accepted"}`))
}

func (c *collector) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var envelope model.BatchEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if !signer.Verify(envelope.DeviceID, envelope.Timestamp, c.secret, envelope.Signature) {
		c.logger.Warn("signature mismatch", "device", envelope.DeviceID)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	c.logger.Info("received batch", "device", envelope.DeviceID, "count", len(envelope.Locations))
	for _, loc := range envelope.Locations {
		c.logger.Debug("batch entry",
			"latitude", loc.Latitude,
			"longitude", loc.Longitude,
			"observed_at", loc.LocationTime,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"accepted"}`))
}
