package simulator

import (
	"fmt"

	"github.com/xitongsys/parquet-go/schema"
)

const (
	TopicOrderPlaced       = "order_placed_events"
	TopicOrderReady        = "order_ready_events"
	TopicDeliveryStarted   = "delivery_started_events"
	TopicDeliveryCompleted = "delivery_completed_events"
	TopicDeliveryCancelled = "delivery_cancelled_events"
	TopicVehicleState      = "vehicle_state_events"
	TopicTrafficSignals    = "traffic_signal_events"
)

// Topics lists every output topic.
var Topics = []string{
	TopicOrderPlaced,
	TopicOrderReady,
	TopicDeliveryStarted,
	TopicDeliveryCompleted,
	TopicDeliveryCancelled,
	TopicVehicleState,
	TopicTrafficSignals,
}

// OrderPlacedEvent represents an order being placed
type OrderPlacedEvent struct {
	Timestamp    int64   `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	EventType    string  `json:"eventType" parquet:"name=eventType,type=BYTE_ARRAY,convertedtype=UTF8"`
	OrderID      string  `json:"orderId" parquet:"name=orderId,type=BYTE_ARRAY,convertedtype=UTF8"`
	Item         string  `json:"item" parquet:"name=item,type=BYTE_ARRAY,convertedtype=UTF8"`
	Price        float64 `json:"price" parquet:"name=price,type=DOUBLE"`
	DestinationX float64 `json:"destinationX" parquet:"name=destinationX,type=DOUBLE"`
	DestinationY float64 `json:"destinationY" parquet:"name=destinationY,type=DOUBLE"`
	Status       string  `json:"status" parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
}

// OrderReadyEvent represents an order leaving the kitchen
type OrderReadyEvent struct {
	Timestamp    int64   `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	EventType    string  `json:"eventType" parquet:"name=eventType,type=BYTE_ARRAY,convertedtype=UTF8"`
	OrderID      string  `json:"orderId" parquet:"name=orderId,type=BYTE_ARRAY,convertedtype=UTF8"`
	Item         string  `json:"item" parquet:"name=item,type=BYTE_ARRAY,convertedtype=UTF8"`
	DestinationX float64 `json:"destinationX" parquet:"name=destinationX,type=DOUBLE"`
	DestinationY float64 `json:"destinationY" parquet:"name=destinationY,type=DOUBLE"`
	Status       string  `json:"status" parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
}

// DeliveryStartedEvent carries the planned route. Path is the JSON encoded waypoint list.
type DeliveryStartedEvent struct {
	Timestamp  int64   `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	EventType  string  `json:"eventType" parquet:"name=eventType,type=BYTE_ARRAY,convertedtype=UTF8"`
	OrderID    string  `json:"orderId" parquet:"name=orderId,type=BYTE_ARRAY,convertedtype=UTF8"`
	DeliveryID string  `json:"deliveryId" parquet:"name=deliveryId,type=BYTE_ARRAY,convertedtype=UTF8"`
	Path       string  `json:"path" parquet:"name=path,type=BYTE_ARRAY,convertedtype=UTF8"`
	Waypoints  int32   `json:"waypoints" parquet:"name=waypoints,type=INT32"`
	Cost       float64 `json:"cost" parquet:"name=cost,type=DOUBLE"`
	Status     string  `json:"status" parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
}

// DeliveryOutcomeEvent represents a delivery finishing or being superseded
type DeliveryOutcomeEvent struct {
	Timestamp  int64  `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	EventType  string `json:"eventType" parquet:"name=eventType,type=BYTE_ARRAY,convertedtype=UTF8"`
	OrderID    string `json:"orderId" parquet:"name=orderId,type=BYTE_ARRAY,convertedtype=UTF8"`
	DeliveryID string `json:"deliveryId" parquet:"name=deliveryId,type=BYTE_ARRAY,convertedtype=UTF8"`
	Status     string `json:"status" parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
}

// VehicleStateEvent is a sampled animation frame
type VehicleStateEvent struct {
	Timestamp  int64   `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	EventType  string  `json:"eventType" parquet:"name=eventType,type=BYTE_ARRAY,convertedtype=UTF8"`
	VehicleID  string  `json:"vehicleId" parquet:"name=vehicleId,type=BYTE_ARRAY,convertedtype=UTF8"`
	X          float64 `json:"x" parquet:"name=x,type=DOUBLE"`
	Y          float64 `json:"y" parquet:"name=y,type=DOUBLE"`
	Status     string  `json:"status" parquet:"name=status,type=BYTE_ARRAY,convertedtype=UTF8"`
	StatusText string  `json:"statusText" parquet:"name=statusText,type=BYTE_ARRAY,convertedtype=UTF8"`
	Progress   float64 `json:"progress" parquet:"name=progress,type=DOUBLE"`
	EtaMinutes int32   `json:"etaMinutes" parquet:"name=etaMinutes,type=INT32"`
	Tick       int32   `json:"tick" parquet:"name=tick,type=INT32"`
}

// TrafficSignalEvent records one signal cycle. States is a JSON encoded id to state map.
type TrafficSignalEvent struct {
	Timestamp int64  `json:"timestamp" parquet:"name=timestamp,type=INT64"`
	EventType string `json:"eventType" parquet:"name=eventType,type=BYTE_ARRAY,convertedtype=UTF8"`
	States    string `json:"states" parquet:"name=states,type=BYTE_ARRAY,convertedtype=UTF8"`
	Red       int32  `json:"red" parquet:"name=red,type=INT32"`
	Green     int32  `json:"green" parquet:"name=green,type=INT32"`
}

// newRecord returns a pointer to the record type written to topic.
func newRecord(topic string) (interface{}, error) {
	switch topic {
	case TopicOrderPlaced:
		return new(OrderPlacedEvent), nil
	case TopicOrderReady:
		return new(OrderReadyEvent), nil
	case TopicDeliveryStarted:
		return new(DeliveryStartedEvent), nil
	case TopicDeliveryCompleted, TopicDeliveryCancelled:
		return new(DeliveryOutcomeEvent), nil
	case TopicVehicleState:
		return new(VehicleStateEvent), nil
	case TopicTrafficSignals:
		return new(TrafficSignalEvent), nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", topic)
	}
}

func GetSchema(topic string) (*schema.SchemaHandler, error) {
	rec, err := newRecord(topic)
	if err != nil {
		return nil, err
	}
	sh, err := schema.NewSchemaHandlerFromStruct(rec)
	if err != nil {
		return nil, fmt.Errorf("error creating schema for %s: %w", topic, err)
	}
	return sh, nil
}
