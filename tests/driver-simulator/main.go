package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Simulates a courier driving around downtown San Francisco, streaming
// jittered positions over the websocket endpoint.

type registerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type registerResponse struct {
	ID string `json:"id"`
}

type locationUpdate struct {
	Type     string  `json:"type"`
	DriverID string  `json:"driverId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "dispatch service address")
	driverID := flag.String("driver", "", "existing driver id (registers a new one when empty)")
	interval := flag.Duration("interval", 2*time.Second, "delay between position reports")
	flag.Parse()

	id := *driverID
	if id == "" {
		var err error
		id, err = register(*addr)
		if err != nil {
			log.Fatalf("failed to register driver: %v", err)
		}
		log.Printf("registered driver %s", id)
	}

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", *addr), nil)
	if err != nil {
		log.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	// Drain broadcasts so the server's send buffer never fills up.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	lat, lng := 37.7749, -122.4194
	for {
		lat += (rand.Float64() - 0.5) * 0.002
		lng += (rand.Float64() - 0.5) * 0.002

		err := conn.WriteJSON(locationUpdate{
			Type:     "driver_location_update",
			DriverID: id,
			Lat:      lat,
			Lng:      lng,
		})
		if err != nil {
			log.Fatalf("failed to send position: %v", err)
		}
		log.Printf("reported %.5f,%.5f", lat, lng)
		time.Sleep(*interval)
	}
}

func register(addr string) (string, error) {
	body, err := json.Marshal(registerRequest{
		Name:  fmt.Sprintf("Sim Driver %d", rand.Intn(10000)),
		Phone: fmt.Sprintf("+1555%07d", rand.Intn(10000000)),
	})
	if err != nil {
		return "", err
	}

	res, err := http.Post(fmt.Sprintf("http://%s/api/drivers", addr), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	var created registerResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		return "", err
	}
	return created.ID, nil
}
