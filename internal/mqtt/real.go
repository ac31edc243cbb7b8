package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/garage-opener/internal/door"
	"github.com/sweeney/garage-opener/internal/logger"
)

const (
	defaultClientID   = "garage-opener"
	defaultBufferSize = 32
	publishTimeout    = 5 * time.Second
)

// Options configures a RealClient.
type Options struct {
	Broker     string
	ClientID   string
	Prefix     string
	BufferSize int // reports kept while disconnected
	Logger     *zap.SugaredLogger
	OnCommand  CommandHandler
}

// RealClient talks to an actual MQTT broker.
type RealClient struct {
	client  paho.Client
	topics  Topics
	log     *zap.SugaredLogger
	handler CommandHandler

	// mu orders state reports against the replay in onConnect: a report
	// either joins the buffer before the drain or is published after it.
	mu        sync.Mutex
	buf       *ringBuffer
	online    bool // between onConnect and the next connection loss
	connected bool // at least one successful connect
}

// NewRealClient configures a client. Call Connect to start it.
func NewRealClient(opts Options) *RealClient {
	if opts.ClientID == "" {
		opts.ClientID = defaultClientID
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}

	c := &RealClient{
		topics:  NewTopics(opts.Prefix),
		log:     logger.OrNop(opts.Logger),
		handler: opts.OnCommand,
		buf:     newRingBuffer(opts.BufferSize),
	}
	c.client = paho.NewClient(c.clientOptions(opts))
	return c
}

func (c *RealClient) clientOptions(opts Options) *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(c.topics.System(), string(willPayload()), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
}

// Connect starts connecting and waits up to timeout for the first
// connection. A broker that is not reachable yet is not an error: the client
// keeps retrying and reports are buffered meanwhile.
func (c *RealClient) Connect(timeout time.Duration) error {
	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		c.log.Warnw("mqtt broker not reachable yet, retrying in background", "timeout", timeout)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

func (c *RealClient) onConnect(client paho.Client) {
	filters := make(map[string]byte, len(door.IDs()))
	for _, id := range door.IDs() {
		filters[c.topics.Command(id)] = 1
	}
	token := client.SubscribeMultiple(filters, c.onMessage)
	if !token.WaitTimeout(publishTimeout) {
		c.log.Errorw("mqtt subscribe timeout")
	} else if err := token.Error(); err != nil {
		c.log.Errorw("mqtt subscribe failed", "error", err)
	}

	c.mu.Lock()
	reconnect := c.connected
	c.connected = true
	c.online = true
	pending := c.buf.drainAll()
	replayed := c.replayLocked(pending)
	c.mu.Unlock()

	if reconnect {
		c.log.Infow("mqtt reconnected", "replayed", replayed)
		if err := c.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			c.log.Errorw("publish reconnected event failed", "error", err)
		}
		return
	}
	c.log.Infow("mqtt connected", "replayed", replayed)
}

// replayLocked publishes pending oldest first. On the first failure the
// rest go back into the buffer for the next connect. Caller holds c.mu.
func (c *RealClient) replayLocked(pending []bufferedMsg) int {
	for i, msg := range pending {
		if err := c.publish(msg); err != nil {
			c.log.Errorw("replay buffered message failed", "topic", msg.topic, "error", err)
			for _, rest := range pending[i:] {
				c.enqueueLocked(rest)
			}
			return i
		}
	}
	return len(pending)
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.mu.Lock()
	c.online = false
	c.mu.Unlock()
	c.log.Warnw("mqtt connection lost", "error", err)
}

func (c *RealClient) onMessage(_ paho.Client, msg paho.Message) {
	id, on, err := c.topics.ParseCommand(msg.Topic(), msg.Payload())
	if err != nil {
		c.log.Warnw("ignoring command", "topic", msg.Topic(), "error", err)
		return
	}
	c.log.Infow("command received", "door", id, "on", on)
	if c.handler == nil {
		return
	}
	err = c.handler(id, on)
	switch {
	case err == nil:
	case errors.Is(err, door.ErrPulseInProgress), errors.Is(err, door.ErrStopped):
		// Already logged by the controller.
	default:
		c.log.Errorw("command failed", "door", id, "error", err)
	}
}

// ReportPowerState publishes the door's power state, retained. While the
// broker is unreachable, or when the publish fails, the report is buffered
// and replayed on the next connect; that is not an error for the caller.
func (c *RealClient) ReportPowerState(id door.ID, on bool) error {
	payload, err := FormatPowerState(id, on, time.Now())
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	msg := bufferedMsg{topic: c.topics.State(id), payload: payload, qos: 1, retained: true}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.online {
		c.enqueueLocked(msg)
		return nil
	}
	if err := c.publish(msg); err != nil {
		c.log.Warnw("publish state failed, buffered for replay", "door", id, "error", err)
		c.enqueueLocked(msg)
	}
	return nil
}

// enqueueLocked buffers msg. Caller holds c.mu.
func (c *RealClient) enqueueLocked(msg bufferedMsg) {
	if c.buf.push(msg) {
		c.log.Warnw("mqtt buffer full, dropping oldest", "capacity", c.buf.len())
	}
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.publish(bufferedMsg{topic: c.topics.System(), payload: payload, qos: 1, retained: event.Retained})
}

func (c *RealClient) publish(msg bufferedMsg) error {
	token := c.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000)
	return nil
}
