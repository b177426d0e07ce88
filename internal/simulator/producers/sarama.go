package producers

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/chrisdamba/deliverysim/internal/logger"
)

// SaramaProducer publishes event messages to Kafka, one Kafka topic per event topic.
type SaramaProducer struct {
	producer sarama.SyncProducer
	log      logger.Logger
}

// NewSaramaConfig returns the producer settings used for every Kafka connection.
func NewSaramaConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = "deliverysim"
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true // Must be true for SyncProducer
	saramaConfig.Net.DialTimeout = 30 * time.Second
	saramaConfig.Net.ReadTimeout = 30 * time.Second
	saramaConfig.Net.WriteTimeout = 30 * time.Second
	return saramaConfig
}

func NewSaramaProducer(brokers string, log logger.Logger) (*SaramaProducer, error) {
	brokerList := strings.Split(brokers, ",")
	producer, err := sarama.NewSyncProducer(brokerList, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Sarama producer: %w", err)
	}

	log = logger.OrNop(log)
	log.Infof("Sarama producer created with brokers %v", brokerList)
	return NewSaramaProducerFromClient(producer, log), nil
}

// NewSaramaProducerFromClient wraps an existing SyncProducer.
func NewSaramaProducerFromClient(producer sarama.SyncProducer, log logger.Logger) *SaramaProducer {
	return &SaramaProducer{producer: producer, log: logger.OrNop(log)}
}

func (s *SaramaProducer) WriteMessage(topic string, msg []byte) error {
	if s.producer == nil {
		return fmt.Errorf("sarama producer is not initialized")
	}

	partition, offset, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(msg),
	})
	if err != nil {
		return fmt.Errorf("send to topic %s: %w", topic, err)
	}
	s.log.Debugf("sent message to %s partition %d offset %d", topic, partition, offset)
	return nil
}

func (s *SaramaProducer) Close() error {
	if s.producer == nil {
		return nil
	}
	err := s.producer.Close()
	s.producer = nil
	return err
}
