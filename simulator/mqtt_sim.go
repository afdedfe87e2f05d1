package main

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// newMQTTClient connects to the broker and calls onConnect after every
// (re)connection so subscriptions survive broker restarts.
func newMQTTClient(broker, clientID string, onConnect paho.OnConnectHandler) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOnConnectHandler(onConnect)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}
