package models

// TrafficSignal is a light placed on one intersection.
type TrafficSignal struct {
	ID       int         `json:"id"`
	Position Point       `json:"position"`
	State    SignalState `json:"state"`
}
