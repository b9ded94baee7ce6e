package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ryansname/drivectl/src/metrics"
	"github.com/ryansname/drivectl/src/toggles"
)

// MQTTMessage represents an outgoing MQTT message
type MQTTMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MQTTSender wraps a channel for sending MQTT messages with helper methods
type MQTTSender struct {
	ch chan<- MQTTMessage
}

// NewMQTTSender creates a new MQTTSender wrapping the given channel
func NewMQTTSender(ch chan<- MQTTMessage) *MQTTSender {
	return &MQTTSender{ch: ch}
}

// ErrSenderFull is returned by the Try methods when the outgoing queue is full
var ErrSenderFull = errors.New("mqtt sender queue full")

// Send sends a raw MQTTMessage, waiting for queue space
func (s *MQTTSender) Send(msg MQTTMessage) {
	s.ch <- msg
}

// TrySend queues msg without waiting. A full queue drops msg and counts it.
func (s *MQTTSender) TrySend(msg MQTTMessage) error {
	select {
	case s.ch <- msg:
		return nil
	default:
		metrics.MQTTDropped.WithLabelValues(msg.Topic).Inc()
		return ErrSenderFull
	}
}

// PublishJSON marshals v and sends it to topic
func (s *MQTTSender) PublishJSON(topic string, v any, qos byte, retain bool) error {
	msg, err := jsonMessage(topic, v, qos, retain)
	if err != nil {
		return err
	}
	s.Send(msg)
	return nil
}

// TryPublishJSON is PublishJSON for callers on the control cycle
func (s *MQTTSender) TryPublishJSON(topic string, v any, qos byte, retain bool) error {
	msg, err := jsonMessage(topic, v, qos, retain)
	if err != nil {
		return err
	}
	return s.TrySend(msg)
}

func jsonMessage(topic string, v any, qos byte, retain bool) (MQTTMessage, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return MQTTMessage{}, fmt.Errorf("marshal %s: %w", topic, err)
	}
	return MQTTMessage{Topic: topic, Payload: payload, QoS: qos, Retain: retain}, nil
}

// PublishToggles publishes the toggles retained so late subscribers get them
func (s *MQTTSender) PublishToggles(t toggles.Toggles) error {
	payload, err := t.Encode()
	if err != nil {
		return fmt.Errorf("encode toggles: %w", err)
	}

	s.Send(MQTTMessage{
		Topic:   TopicToggles,
		Payload: payload,
		QoS:     1,
		Retain:  true,
	})
	return nil
}

// RequestAsset asks the asset service to run request with args. With wait
// false a full queue drops the request.
func (s *MQTTSender) RequestAsset(request string, args any, wait bool) error {
	if args == nil {
		args = struct{}{}
	}
	if !wait {
		return s.TryPublishJSON(TopicAssetsPrefix+request, args, 1, false)
	}
	return s.PublishJSON(TopicAssetsPrefix+request, args, 1, false)
}

// ClearFlag removes the retained drivectl/memory/<key> message so the broker
// does not deliver a handled request again. It never waits for queue space.
func (s *MQTTSender) ClearFlag(key string) error {
	return s.TrySend(MQTTMessage{
		Topic:   TopicMemoryPrefix + key,
		Payload: []byte{},
		QoS:     1,
		Retain:  true,
	})
}

// mqttSenderWorker handles outgoing MQTT messages, queuing them until a client connects
func mqttSenderWorker(
	ctx context.Context,
	outgoingChan <-chan MQTTMessage,
	clientChan <-chan mqtt.Client,
) {
	log.Println("MQTT sender worker started")

	var client mqtt.Client
	var messageQueue []MQTTMessage

	for {
		select {
		case newClient := <-clientChan:
			log.Println("MQTT sender worker received new client")
			client = newClient

			if client != nil && client.IsConnected() {
				queuedCount := len(messageQueue)
				for _, msg := range messageQueue {
					publish(client, msg)
				}
				messageQueue = nil
				if queuedCount > 0 {
					log.Printf("MQTT sender worker processed %d queued messages\n", queuedCount)
				}
			}

		case msg := <-outgoingChan:
			if client != nil && client.IsConnected() {
				publish(client, msg)
				continue
			}

			// Plans are only useful live, everything else waits for a connection
			if msg.Topic == TopicPlan {
				continue
			}
			messageQueue = append(messageQueue, msg)
			log.Printf("MQTT sender worker queued message (total queued: %d)\n", len(messageQueue))

		case <-ctx.Done():
			log.Println("MQTT sender worker stopped")
			return
		}
	}
}

func publish(client mqtt.Client, msg MQTTMessage) {
	token := client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("Failed to publish to %s: %v\n", msg.Topic, token.Error())
	}
}
