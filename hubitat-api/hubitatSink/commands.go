package hubitatSink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	commandSuffix  = "set"
	commandTimeout = 10 * time.Second
)

var errRetainedCommand = errors.New("ignoring retained command")

// Subscriber is the subscribing half of a paho mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Commander executes a controller command for a hub device.
type Commander interface {
	Command(ctx context.Context, deviceId string, payload string) error
}

// MQTTCommands listens on <prefix>/<hubId>/<deviceId>/set and hands the
// payload to the Commander.
type MQTTCommands struct {
	ctx       context.Context
	commander Commander
	prefix    string
	qos       byte
	logger    *zap.SugaredLogger
}

func NewMQTTCommands(ctx context.Context, commander Commander, prefix string, qos byte, logger *zap.SugaredLogger) *MQTTCommands {
	return &MQTTCommands{
		ctx:       ctx,
		commander: commander,
		prefix:    strings.TrimRight(prefix, "/"),
		qos:       qos,
		logger:    logger,
	}
}

func (c *MQTTCommands) Topic() string {
	return c.prefix + "/+/+/" + commandSuffix
}

func (c *MQTTCommands) Subscribe(sub Subscriber) error {
	topic := c.Topic()
	token := sub.Subscribe(topic, c.qos, c.Handle)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribing %s: timeout after %v", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing %s: %w", topic, err)
	}
	c.logger.Infof("Listening for commands on %s", topic)
	return nil
}

// deviceId extracts the device from a command topic.
func (c *MQTTCommands) deviceId(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, c.prefix+"/")
	if !ok {
		return "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != commandSuffix || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (c *MQTTCommands) handle(msg mqtt.Message) error {
	if msg.Retained() {
		return fmt.Errorf("%w on %s", errRetainedCommand, msg.Topic())
	}
	id, ok := c.deviceId(msg.Topic())
	if !ok {
		return fmt.Errorf("unexpected command topic %s", msg.Topic())
	}
	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	defer cancel()
	return c.commander.Command(ctx, id, string(msg.Payload()))
}

// Handle is the paho callback. Failures are logged, the broker is not told.
func (c *MQTTCommands) Handle(_ mqtt.Client, msg mqtt.Message) {
	if err := c.handle(msg); err != nil {
		c.logger.Warnf("Command on %s failed: %v", msg.Topic(), err)
	}
}
