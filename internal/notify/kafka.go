package notify

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// KafkaSink publishes every notification as JSON to a Kafka topic so other
// systems (CRM, SMS gateway) can react to support traffic.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaSink{producer: producer, topic: topic}, nil
}

func (k *KafkaSink) Publish(target Consumer, n Notification) error {
	value, err := json.Marshal(struct {
		Target Consumer `json:"target"`
		Notification
	}{Target: target, Notification: n})
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(n.SessionID),
		Value: sarama.ByteEncoder(value),
	}
	_, _, err = k.producer.SendMessage(msg)
	return err
}

func (k *KafkaSink) Close() error { return k.producer.Close() }
