package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type positionPayload struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp string   `json:"timestamp"`
}

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	topic := flag.String("topic", "positions/sim-device-1", "Topic to publish simulated positions on")
	startLat := flag.Float64("lat", 59.3293, "Starting latitude in degrees")
	startLon := flag.Float64("lon", 18.0686, "Starting longitude in degrees")
	speed := flag.Float64("speed", 1.4, "Simulated movement speed in meters per second")
	interval := flag.Duration("interval", 2*time.Second, "Interval between published positions")
	baseAccuracy := flag.Float64("accuracy", 8, "Baseline reported accuracy in meters")
	accuracyJitter := flag.Float64("accuracy-jitter", 4, "Maximum random jitter applied to accuracy")

	flag.Parse()

	rand.Seed(time.Now().UnixNano())

	clientID := fmt.Sprintf("position-sim-%d", time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to connect to broker: %v", token.Error())
	}
	log.Printf("connected to MQTT broker %s as %s", *brokerAddr, clientID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	lat, lon := *startLat, *startLon
	heading := rand.Float64() * 2 * math.Pi

	publish := func() {
		// Drift the heading a little and step forward at the configured speed.
		heading += (rand.Float64() - 0.5) * 0.5
		stepMeters := *speed * interval.Seconds()
		lat += stepMeters * math.Cos(heading) / 111_320
		lon += stepMeters * math.Sin(heading) / (111_320 * math.Cos(lat*math.Pi/180))

		accuracy := randomAccuracy(*baseAccuracy, *accuracyJitter)
		payload := positionPayload{
			Latitude:  lat,
			Longitude: lon,
			Accuracy:  &accuracy,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("failed to encode payload: %v", err)
			return
		}

		token := client.Publish(*topic, 0, false, data)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("publish error: %v", err)
			return
		}
		log.Printf("published %s lat=%.6f lon=%.6f accuracy=%.1f", *topic, lat, lon, accuracy)
	}

	publish()

	for {
		select {
		case <-ctx.Done():
			log.Print("received shutdown signal, disconnecting")
			client.Disconnect(250)
			return
		case <-ticker.C:
			publish()
		}
	}
}

func randomAccuracy(base, jitter float64) float64 {
	if jitter <= 0 {
		return base
	}
	value := base + (rand.Float64()*2-1)*jitter
	if value < 0 {
		return 0
	}
	return value
}
