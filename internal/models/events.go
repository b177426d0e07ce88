package models

// OrderReadyForDelivery is the input from the order subsystem that starts a delivery.
type OrderReadyForDelivery struct {
	OrderID     string  `json:"order_id"`
	Item        string  `json:"item"`
	Price       float64 `json:"price"`
	Destination Point   `json:"destination"`
}

type OrderPlaced struct {
	OrderID     string  `json:"order_id"`
	Item        string  `json:"item"`
	Price       float64 `json:"price"`
	Destination Point   `json:"destination"`
}

type DeliveryStarted struct {
	OrderID    string  `json:"order_id"`
	DeliveryID string  `json:"delivery_id"`
	Path       []Point `json:"path"`
	Cost       float64 `json:"cost"`
}

type DeliveryCompleted struct {
	OrderID    string `json:"order_id"`
	DeliveryID string `json:"delivery_id"`
}

type DeliveryCancelled struct {
	OrderID    string `json:"order_id"`
	DeliveryID string `json:"delivery_id"`
}

// VehicleState is the per-frame view of the vehicle published to presentation.
type VehicleState struct {
	VehicleID  string        `json:"vehicle_id"`
	Position   Point         `json:"position"`
	Status     VehicleStatus `json:"status"`
	StatusText string        `json:"status_text"`
	Progress   float64       `json:"progress"`
	EtaMinutes int           `json:"eta_minutes"`
	Tick       int           `json:"tick"`
}

type SignalsChanged struct {
	Signals []TrafficSignal `json:"signals"`
}

// EventMessage is a serialized event bound for an output topic.
type EventMessage struct {
	Topic   string
	Message []byte
}
