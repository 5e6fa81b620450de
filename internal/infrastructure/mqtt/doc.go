// Package mqtt provides MQTT client connectivity for the gray-bus-tools
// daemons.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The broker is the only integration point between the daemons: retained
// messages carry configuration and last-known state, so a restarting daemon
// recovers everything by re-subscribing. The broker connection failing at
// startup is therefore fatal by design; the supervisor restarts the process
// and the retained state replays.
//
// Each daemon publishes "online"/"offline" retained to graybus/status/<name>
// with an LWT covering unexpected disconnects.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, "logic")
//	if err != nil {
//	    return err // fatal, no retry
//	}
//	defer client.Close()
//
//	err = client.Subscribe("#", client.QoS(),
//	    func(topic string, payload []byte) error {
//	        return daemon.HandleMessage(topic, payload)
//	    })
package mqtt
