package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Creates a delivery and polls it until it reaches a terminal status.
// Handy for watching the dispatch flow end to end together with the
// driver simulator.

type deliveryResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	DriverID string `json:"driverId"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "dispatch service address")
	userID := flag.String("user", "demo-user", "requesting user id")
	urgency := flag.String("urgency", "standard", "express, standard or economy")
	interval := flag.Duration("interval", 2*time.Second, "poll interval")
	flag.Parse()

	created, err := createDelivery(*addr, *userID, *urgency)
	if err != nil {
		log.Fatalf("failed to create delivery: %v", err)
	}
	log.Printf("created delivery %s (status=%s driver=%q)", created.ID, created.Status, created.DriverID)

	for {
		time.Sleep(*interval)

		current, err := getDelivery(*addr, created.ID)
		if err != nil {
			log.Printf("poll failed: %v", err)
			continue
		}
		log.Printf("delivery %s status=%s driver=%q", current.ID, current.Status, current.DriverID)

		if current.Status == "delivered" || current.Status == "cancelled" {
			return
		}
	}
}

func createDelivery(addr, userID, urgency string) (deliveryResponse, error) {
	body, err := json.Marshal(map[string]any{
		"userId":           userID,
		"pickupLocation":   map[string]any{"lat": 37.7749, "lng": -122.4194, "address": "1 Market St"},
		"deliveryLocation": map[string]any{"lat": 37.7849, "lng": -122.4094, "address": "2 Mission St"},
		"itemDescription":  "demo package",
		"packageSize":      "small",
		"urgency":          urgency,
	})
	if err != nil {
		return deliveryResponse{}, err
	}

	res, err := http.Post(fmt.Sprintf("http://%s/api/deliveries", addr), "application/json", bytes.NewReader(body))
	if err != nil {
		return deliveryResponse{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		return deliveryResponse{}, fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	var created deliveryResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		return deliveryResponse{}, err
	}
	return created, nil
}

func getDelivery(addr, id string) (deliveryResponse, error) {
	res, err := http.Get(fmt.Sprintf("http://%s/api/deliveries/%s", addr, id))
	if err != nil {
		return deliveryResponse{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return deliveryResponse{}, fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	var current deliveryResponse
	if err := json.NewDecoder(res.Body).Decode(&current); err != nil {
		return deliveryResponse{}, err
	}
	return current, nil
}
