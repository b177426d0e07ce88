package models

import "time"

type Order struct {
	ID          string    `json:"id"`
	Item        string    `json:"item"`
	Price       float64   `json:"price"`
	Destination Point     `json:"destination"`
	Status      string    `json:"status"` // e.g. "preparing", "ready_for_delivery", "delivered"
	PlacedAt    time.Time `json:"placed_at"`
	ReadyAt     time.Time `json:"ready_at"`
	DeliveredAt time.Time `json:"delivered_at"`
}
