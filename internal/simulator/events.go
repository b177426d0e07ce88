package simulator

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chrisdamba/deliverysim/internal/models"
)

// serializeEvent maps a session event to its output topic and JSON payload.
func serializeEvent(event models.Event) (models.EventMessage, error) {
	var topic string
	var eventData interface{}
	ts := event.Time.Unix()

	switch data := event.Data.(type) {
	case models.OrderPlaced:
		topic = TopicOrderPlaced
		eventData = OrderPlacedEvent{
			Timestamp:    ts,
			EventType:    event.Type,
			OrderID:      data.OrderID,
			Item:         data.Item,
			Price:        data.Price,
			DestinationX: data.Destination.X,
			DestinationY: data.Destination.Y,
			Status:       models.OrderStatusPreparing,
		}
	case models.OrderReadyForDelivery:
		topic = TopicOrderReady
		eventData = OrderReadyEvent{
			Timestamp:    ts,
			EventType:    event.Type,
			OrderID:      data.OrderID,
			Item:         data.Item,
			DestinationX: data.Destination.X,
			DestinationY: data.Destination.Y,
			Status:       models.OrderStatusReadyForDelivery,
		}
	case models.DeliveryStarted:
		path, err := json.Marshal(data.Path)
		if err != nil {
			return models.EventMessage{}, fmt.Errorf("encode path: %w", err)
		}
		topic = TopicDeliveryStarted
		eventData = DeliveryStartedEvent{
			Timestamp:  ts,
			EventType:  event.Type,
			OrderID:    data.OrderID,
			DeliveryID: data.DeliveryID,
			Path:       string(path),
			Waypoints:  int32(len(data.Path)),
			Cost:       data.Cost,
			Status:     models.OrderStatusDelivering,
		}
	case models.DeliveryCompleted:
		topic = TopicDeliveryCompleted
		eventData = DeliveryOutcomeEvent{
			Timestamp:  ts,
			EventType:  event.Type,
			OrderID:    data.OrderID,
			DeliveryID: data.DeliveryID,
			Status:     string(models.DeliveryStatusDelivered),
		}
	case models.DeliveryCancelled:
		topic = TopicDeliveryCancelled
		eventData = DeliveryOutcomeEvent{
			Timestamp:  ts,
			EventType:  event.Type,
			OrderID:    data.OrderID,
			DeliveryID: data.DeliveryID,
			Status:     string(models.DeliveryStatusCancelled),
		}
	case models.VehicleState:
		topic = TopicVehicleState
		eventData = VehicleStateEvent{
			Timestamp:  ts,
			EventType:  event.Type,
			VehicleID:  data.VehicleID,
			X:          data.Position.X,
			Y:          data.Position.Y,
			Status:     string(data.Status),
			StatusText: data.StatusText,
			Progress:   data.Progress,
			EtaMinutes: int32(data.EtaMinutes),
			Tick:       int32(data.Tick),
		}
	case models.SignalsChanged:
		states := make(map[string]models.SignalState, len(data.Signals))
		var red, green int32
		for _, s := range data.Signals {
			states[strconv.Itoa(s.ID)] = s.State
			if s.State == models.SignalRed {
				red++
			} else {
				green++
			}
		}
		encoded, err := json.Marshal(states)
		if err != nil {
			return models.EventMessage{}, fmt.Errorf("encode signal states: %w", err)
		}
		topic = TopicTrafficSignals
		eventData = TrafficSignalEvent{
			Timestamp: ts,
			EventType: event.Type,
			States:    string(encoded),
			Red:       red,
			Green:     green,
		}
	default:
		return models.EventMessage{}, fmt.Errorf("unknown event type: %v", event.Type)
	}

	data, err := json.Marshal(eventData)
	if err != nil {
		return models.EventMessage{}, fmt.Errorf("serialize %s event: %w", event.Type, err)
	}
	return models.EventMessage{Topic: topic, Message: data}, nil
}
