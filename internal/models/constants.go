package models

const (
	OrderStatusPreparing        = "preparing"
	OrderStatusReadyForDelivery = "ready_for_delivery"
	OrderStatusDelivering       = "delivering"
	OrderStatusDelivered        = "delivered"
	OrderStatusCancelled        = "cancelled"

	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusPlanning  DeliveryStatus = "planning"
	DeliveryStatusAnimating DeliveryStatus = "animating"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"

	VehicleStatusIdle       VehicleStatus = "idle"
	VehicleStatusDelivering VehicleStatus = "delivering"

	SessionIdle      SessionState = "idle"
	SessionPlanning  SessionState = "planning"
	SessionAnimating SessionState = "animating"
	SessionDelivered SessionState = "delivered"

	SignalGreen SignalState = "green"
	SignalRed   SignalState = "red"
)

// Status text shown to the presentation layer.
const (
	StatusTextStarting   = "Starting delivery"
	StatusTextDelivering = "delivering"
	StatusTextDelivered  = "Delivered"
)

type (
	DeliveryStatus string
	VehicleStatus  string
	SessionState   string
	SignalState    string
)

// Toggle returns the opposite signal state.
func (s SignalState) Toggle() SignalState {
	if s == SignalGreen {
		return SignalRed
	}
	return SignalGreen
}
