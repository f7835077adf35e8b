// Package mqtt bridges the agent to an MQTT broker: device commands come in on
// topics, results and connection state go out retained.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"goxlr-controller/internal/command"
	"goxlr-controller/internal/config"
	"goxlr-controller/internal/core"
)

// ScriptControl starts and stops scripts.
type ScriptControl interface {
	RunScript(name string) error
	StopScript() error
}

type Client struct {
	client   mqtt.Client
	cfg      config.MQTTConfig
	commands core.CommandChannel
	scripts  ScriptControl
	eventBus *core.EventBus
	policy   command.CasePolicy
	prefix   string
}

// NewClient builds the bridge. It returns nil when MQTT is disabled.
func NewClient(cfg config.MQTTConfig, commands core.CommandChannel, scripts ScriptControl, bus *core.EventBus, policy command.CasePolicy) *Client {
	if !cfg.Enabled {
		return nil
	}

	prefix := strings.Trim(cfg.TopicPrefix, "/")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	// Keep retrying at startup; the broker may come up after us.
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	// Commands for one serial must reach the command channel in arrival order.
	opts.SetOrderMatters(true)

	opts.SetWill(prefix+"/availability", "offline", 1, true)

	c := &Client{
		cfg:      cfg,
		commands: commands,
		scripts:  scripts,
		eventBus: bus,
		policy:   policy,
		prefix:   prefix,
	}

	opts.SetOnConnectHandler(c.onConnect)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] Connection lost: %v. Retrying in background...", err)
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		log.Println("[MQTT] Attempting to reconnect...")
	})

	c.client = mqtt.NewClient(opts)

	return c
}

// Connect starts the connection. With connect retry on, an error here means a
// configuration problem rather than an unreachable broker.
func (c *Client) Connect() error {
	if c.client == nil {
		return nil
	}
	log.Printf("[MQTT] Starting connection loop to %s...", c.cfg.Broker)

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		log.Printf("[MQTT] Initial connection error: %v", token.Error())
		return token.Error()
	}

	return nil
}

// Disconnect publishes offline when connected, then closes the connection. It also
// aborts a Connect still retrying.
func (c *Client) Disconnect() {
	if c.client == nil {
		return
	}
	if c.client.IsConnected() {
		log.Println("[MQTT] Disconnecting...")

		token := c.client.Publish(c.topic("availability"), 1, true, "offline")
		if token.WaitTimeout(2 * time.Second) {
			if token.Error() != nil {
				log.Printf("[MQTT] Warning: failed to publish offline status: %v", token.Error())
			}
		} else {
			log.Println("[MQTT] Warning: timed out publishing offline status")
		}
	}

	c.client.Disconnect(250)
	log.Println("[MQTT] Disconnected.")
}

// Publish sends payload to <prefix>/<subtopic>. Strings and byte slices go out as
// they are; anything else is JSON encoded.
func (c *Client) Publish(subtopic string, payload interface{}, retained bool) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}

	var msg []byte
	switch p := payload.(type) {
	case string:
		msg = []byte(p)
	case []byte:
		msg = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			log.Printf("[MQTT] Cannot encode payload for %s: %v", subtopic, err)
			return
		}
		msg = b
	}

	topic := c.topic(subtopic)
	token := c.client.Publish(topic, 0, retained, msg)

	go func() {
		if token.WaitTimeout(5 * time.Second) {
			if token.Error() != nil {
				log.Printf("[MQTT] Publish error to %s: %v", topic, token.Error())
			}
		} else {
			log.Printf("[MQTT] Timeout publishing to %s", topic)
		}
	}()
}

// ForwardEvents publishes daemon connection changes and command results until ctx
// is cancelled.
func (c *Client) ForwardEvents(ctx context.Context) {
	types := []core.EventType{core.DaemonConnectedEvent, core.CommandSentEvent, core.CommandFailedEvent}
	sub := c.eventBus.Subscribe(types...)
	defer c.eventBus.Unsubscribe(sub, types...)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-sub:
			c.handleEvent(event)
		}
	}
}

func (c *Client) handleEvent(event core.Event) {
	switch p := event.Payload.(type) {
	case core.DaemonStatus:
		state := "disconnected"
		if p.Connected {
			state = "connected"
		}
		c.Publish("daemon/connection", state, true)
	case core.CommandResult:
		c.Publish(p.Serial+"/last_command", p, true)
	}
}

func (c *Client) topic(subtopic string) string {
	return fmt.Sprintf("%s/%s", c.prefix, subtopic)
}

// onConnect runs on a paho goroutine after every (re)connect.
func (c *Client) onConnect(client mqtt.Client) {
	log.Println("[MQTT] Connected to broker.")

	topics := map[string]mqtt.MessageHandler{
		"+/command/+": c.handleCommand,
		"script/run":  c.handleScriptRun,
		"script/stop": c.handleScriptStop,
	}

	for sub, handler := range topics {
		topic := c.topic(sub)
		if token := client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
			log.Printf("[MQTT] Error subscribing to %s: %v", topic, token.Error())
		} else {
			log.Printf("[MQTT] Subscribed to %s", topic)
		}
	}

	go c.Publish("availability", "online", true)
}

// parseCommandTopic splits <prefix>/<serial>/command/<name>.
func parseCommandTopic(prefix, topic string) (serial, name string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "command" || parts[0] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[0], parts[2], true
}

func (c *Client) handleCommand(client mqtt.Client, msg mqtt.Message) {
	serial, name, ok := parseCommandTopic(c.prefix, msg.Topic())
	if !ok {
		log.Printf("[MQTT] Ignoring message on %s", msg.Topic())
		return
	}

	kind, err := command.DecodeKind(name, msg.Payload(), c.policy)
	if err == nil {
		_, err = command.Encode(serial, kind)
	}
	if err != nil {
		log.Printf("[MQTT] Rejected %s for %s: %v", name, serial, err)
		c.Publish(serial+"/last_command", core.CommandResult{
			Serial:  serial,
			Command: name,
			Source:  core.SourceMQTT,
			Error:   err.Error(),
		}, true)
		return
	}

	if !c.commands.TrySubmit(core.Command{Serial: serial, Kind: kind, Source: core.SourceMQTT}) {
		log.Printf("[MQTT] Command channel full, dropping %s for %s", name, serial)
	}
}

func (c *Client) handleScriptRun(client mqtt.Client, msg mqtt.Message) {
	name := strings.TrimSpace(string(msg.Payload()))
	if err := c.scripts.RunScript(name); err != nil {
		log.Printf("[MQTT] Cannot run script %q: %v", name, err)
	}
}

func (c *Client) handleScriptStop(client mqtt.Client, msg mqtt.Message) {
	if err := c.scripts.StopScript(); err != nil {
		log.Printf("[MQTT] Cannot stop script: %v", err)
	}
}
