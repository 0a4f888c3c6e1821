// Package mqttwind subscribes to wind readings published over MQTT and
// feeds them into the same pipeline as the serial instrument. Payloads
// may be raw NMEA sentences or JSON readings.
package mqttwind

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/faceless2/anemometer/internal/rose"
	"github.com/faceless2/anemometer/internal/serialmux"
)

// jsonReading is the JSON payload shape. Speed is in the daemon's
// configured display unit; when is optional and defaults to receipt time.
type jsonReading struct {
	Dir   float64 `json:"dir"`
	Speed float64 `json:"speed"`
	When  int64   `json:"when,omitempty"`
}

// Client bridges an MQTT subscription into a WindHandler.
type Client struct {
	broker  string
	topic   string
	handler *serialmux.WindHandler
}

func New(broker, topic string, h *serialmux.WindHandler) *Client {
	return &Client{broker: broker, topic: topic, handler: h}
}

// HandleMessage dispatches a single MQTT payload. NMEA sentences go
// through the same path as serial lines; JSON readings are inserted
// directly.
func (c *Client) HandleMessage(payload []byte) error {
	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "$") {
		return c.handler.HandleEvent(text)
	}
	if strings.HasPrefix(text, "{") {
		var jr jsonReading
		if err := json.Unmarshal([]byte(text), &jr); err != nil {
			return fmt.Errorf("malformed JSON reading: %w", err)
		}
		when := jr.When
		if when > 0 {
			when = rose.NormalizeTimestamp(when)
		} else {
			when = c.handler.Clock.Now().UnixMilli()
		}
		if c.handler.Rose != nil {
			c.handler.Rose.Insert(jr.Dir, jr.Speed, when)
		}
		if c.handler.Log != nil {
			return c.handler.Log.RecordReading(jr.Dir, jr.Speed, when)
		}
		return nil
	}
	return fmt.Errorf("unrecognised payload %q", text)
}

// brokerAddress strips an optional scheme from the broker URL so it can
// be dialed as a plain TCP address.
func brokerAddress(broker string) (string, error) {
	if !strings.Contains(broker, "://") {
		return broker, nil
	}
	u, err := url.Parse(broker)
	if err != nil {
		return "", fmt.Errorf("invalid broker URL %q: %w", broker, err)
	}
	switch u.Scheme {
	case "tcp", "mqtt":
	default:
		return "", fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(host, "1883")
	}
	return host, nil
}

// Run connects to the broker and pumps messages until the context is
// cancelled. Connection failures are retried with a fixed backoff so a
// broker restart does not take the daemon down.
func (c *Client) Run(ctx context.Context) error {
	addr, err := brokerAddress(c.broker)
	if err != nil {
		return err
	}

	for {
		if err := c.runOnce(ctx, addr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("mqtt connection to %s failed: %v (retrying)", addr, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

// runOnce holds a single broker session: dial, connect, subscribe, and
// dispatch until the connection drops or the context ends.
func (c *Client) runOnce(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	errCh := make(chan error, 1)
	client := paho.NewClient(paho.ClientConfig{
		ClientID: "anemometer-" + uuid.NewString()[:8],
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pub paho.PublishReceived) (bool, error) {
				if err := c.HandleMessage(pub.Packet.Payload); err != nil {
					log.Printf("mqtt message on %s dropped: %v", pub.Packet.Topic, err)
				}
				return true, nil
			},
		},
		OnClientError: func(err error) {
			select {
			case errCh <- err:
			default:
			}
		},
	})

	if _, err := client.Connect(ctx, &paho.Connect{
		ClientID:   client.ClientID(),
		KeepAlive:  30,
		CleanStart: true,
	}); err != nil {
		conn.Close()
		return fmt.Errorf("connect: %w", err)
	}

	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: c.topic, QoS: 0}},
	}); err != nil {
		client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return fmt.Errorf("subscribe %q: %w", c.topic, err)
	}

	log.Printf("mqtt subscribed to %q on %s", c.topic, addr)

	select {
	case <-ctx.Done():
		client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("session: %w", err)
	}
}
