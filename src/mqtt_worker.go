package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// subscriptions maps every telemetry filter to its QoS. Flags are one-shot
// requests and must not be lost; sensor topics are superseded every cycle.
func subscriptions() map[string]byte {
	filters := make(map[string]byte, len(telemetryTopics))
	for _, topic := range telemetryTopics {
		var qos byte
		if strings.HasPrefix(topic, TopicMemoryPrefix) {
			qos = 1
		}
		filters[topic] = qos
	}
	return filters
}

// mqttOptions builds the client options. The broker marks the daemon
// offline on TopicStatus if the connection drops without a disconnect.
func mqttOptions(cfg Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:1883", cfg.MQTTBroker))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(TopicStatus, "offline", 1, true)
	return opts
}

// mqttWorker owns the broker connection. On every (re)connect it hands the
// client to the sender worker, marks the daemon online and subscribes to
// the telemetry filters, forwarding messages to msgChan.
func mqttWorker(
	ctx context.Context,
	opts *mqtt.ClientOptions,
	msgChan chan<- SensorMessage,
	clientChan chan<- mqtt.Client,
) {
	forward := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case msgChan <- SensorMessage{Topic: msg.Topic(), Payload: msg.Payload()}:
		case <-ctx.Done():
		}
	}

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v\n", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("Connected to MQTT broker")

		select {
		case clientChan <- client:
		case <-ctx.Done():
			return
		}

		client.Publish(TopicStatus, 1, true, "online")

		filters := subscriptions()
		token := client.SubscribeMultiple(filters, forward)
		if token.Wait() && token.Error() != nil {
			log.Printf("Failed to subscribe to telemetry: %v\n", token.Error())
			return
		}
		log.Printf("Subscribed to %d telemetry filters\n", len(filters))
	})

	client := mqtt.NewClient(opts)

	log.Println("Connecting to MQTT broker...")
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("Failed to connect to MQTT broker: %v\n", token.Error())
		return
	}

	<-ctx.Done()

	if client.IsConnected() {
		client.Publish(TopicStatus, 1, true, "offline").WaitTimeout(time.Second)
		client.Disconnect(250)
		log.Println("Disconnected from MQTT broker")
	}
}
