package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// sample mirrors the telemetry wire format consumed by the ingest subscriber.
type sample struct {
	UniqueID  string    `json:"unique_id"`
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Speed     float64   `json:"speed"`
	Valid     bool      `json:"valid"`
}

// Cities for realistic routes
var cities = []Location{
	{Lat: 51.5074, Lon: -0.1278},   // London
	{Lat: 40.7128, Lon: -74.0060},  // New York
	{Lat: 40.4168, Lon: -3.7038},   // Madrid
	{Lat: 35.1856, Lon: 33.3823},   // Nicosia
	{Lat: 4.7110, Lon: -74.0721},   // Bogotá
	{Lat: 48.8566, Lon: 2.3522},    // Paris
	{Lat: 41.0082, Lon: 28.9784},   // Istanbul
	{Lat: 51.4816, Lon: -3.1791},   // Cardiff
	{Lat: 34.0522, Lon: -118.2437}, // Los Angeles
	{Lat: 52.5200, Lon: 13.4050},   // Berlin
	{Lat: 35.6762, Lon: 139.6503},  // Tokyo
	{Lat: -33.8688, Lon: 151.2093}, // Sydney
	{Lat: 1.3521, Lon: 103.8198},   // Singapore
	{Lat: 43.6532, Lon: -79.3832},  // Toronto
}

func jitterLocation(base Location, meters float64) Location {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (rand.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return Location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}

func randomLocation() Location {
	base := cities[rand.Intn(len(cities))]
	return jitterLocation(base, 500)
}

type trackerState struct {
	UniqueID   string
	Position   Location
	SpeedKnots float64
	Heading    float64 // radians
}

func (s *trackerState) step(tickSec float64) {
	// small speed and heading noise
	s.SpeedKnots += (rand.Float64()*2 - 1) * 1.5
	if s.SpeedKnots < 0 {
		s.SpeedKnots = 0
	}
	if s.SpeedKnots > 60 {
		s.SpeedKnots = 60
	}
	s.Heading += (rand.Float64()*2 - 1) * 0.2

	meters := s.SpeedKnots * 0.514444 * tickSec
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(s.Position.Lat*math.Pi/180)
	s.Position.Lat += meters * math.Cos(s.Heading) / latMetersPerDeg
	s.Position.Lon += meters * math.Sin(s.Heading) / lonMetersPerDeg
}

func publish(client mqtt.Client, topic string, s *trackerState) {
	msg := sample{
		UniqueID:  s.UniqueID,
		Time:      time.Now(),
		Latitude:  s.Position.Lat,
		Longitude: s.Position.Lon,
		Altitude:  10 + rand.Float64()*90,
		Speed:     s.SpeedKnots,
		Valid:     rand.Float64() > 0.02, // occasional GPS dropout
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Error("Failed to marshal position")
		return
	}
	token := client.Publish(topic, 1, false, data)
	if token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).WithField("unique_id", s.UniqueID).Error("Failed to publish position")
		return
	}
	log.WithFields(log.Fields{
		"unique_id": s.UniqueID,
		"lat":       msg.Latitude,
		"lon":       msg.Longitude,
		"speed":     msg.Speed,
	}).Debug("Published position")
}

func simulateTracker(client mqtt.Client, topic string, s *trackerState, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for range tick.C {
		s.step(interval.Seconds())
		publish(client, topic, s)
	}
}

func main() {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = "tcp://localhost:1883"
	}
	topic := os.Getenv("MQTT_TOPIC")
	if topic == "" {
		topic = "trackd/positions"
	}

	fleetSize := 10
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			fleetSize = n
		}
	}

	interval := 2 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"broker":     broker,
		"topic":      topic,
		"interval":   interval,
	}).Info("Starting tracker simulation")

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("trackd-simulator-%d", time.Now().UnixNano())).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).Fatal("Failed to connect to MQTT broker")
	}
	defer client.Disconnect(250)

	for i := 0; i < fleetSize; i++ {
		start := randomLocation()
		state := &trackerState{
			UniqueID:   fmt.Sprintf("tracker-%03d", i+1),
			Position:   start,
			SpeedKnots: 10 + rand.Float64()*20,
			Heading:    rand.Float64() * 2 * math.Pi,
		}
		go simulateTracker(client, topic, state, interval)
	}

	log.Info("Position simulation started")
	select {} // Block forever
}
