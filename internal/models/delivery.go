package models

import "time"

// Delivery is one trip from the depot to an order's destination. At most one is active.
type Delivery struct {
	ID          string         `json:"id"`
	OrderID     string         `json:"order_id"`
	Item        string         `json:"item"`
	Origin      Point          `json:"origin"`
	Destination Point          `json:"destination"`
	Path        []Point        `json:"path"`
	Cost        float64        `json:"cost"`
	Status      DeliveryStatus `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Vehicle is the single delivery truck.
type Vehicle struct {
	ID       string        `json:"id"`
	Position Point         `json:"position"`
	Status   VehicleStatus `json:"status"`
}
