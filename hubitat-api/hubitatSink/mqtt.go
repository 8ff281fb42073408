package hubitatSink

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

const publishTimeout = 5 * time.Second

var topicEscaper = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// Publisher is the publishing half of a paho mqtt.Client.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// ConnectMQTT opens a paho client with auto reconnect enabled. The session
// is persistent so the command subscription survives a reconnect.
func ConnectMQTT(o MQTTOptions) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	opts.SetUsername(o.Username)
	opts.SetPassword(o.Password)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(false)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connecting to %s: timeout", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", o.Broker, err)
	}
	return client, nil
}

// MQTTSink publishes each normalized device as retained JSON on
// <prefix>/<hubId>/<deviceId>.
type MQTTSink struct {
	publisher Publisher
	prefix    string
	qos       byte
	logger    *zap.SugaredLogger
}

func NewMQTTSink(publisher Publisher, prefix string, qos byte, logger *zap.SugaredLogger) *MQTTSink {
	return &MQTTSink{
		publisher: publisher,
		prefix:    strings.TrimRight(prefix, "/"),
		qos:       qos,
		logger:    logger,
	}
}

func (s *MQTTSink) Topic(d hubitatStructs.NormalizedDevice) string {
	hub := d.HubId
	if hub == "" {
		hub = "hub"
	}
	return s.prefix + "/" + topicEscaper.Replace(hub) + "/" + topicEscaper.Replace(d.DeviceId)
}

// Publish sends every device and keeps going past failures. The returned
// error combines all failed publishes.
func (s *MQTTSink) Publish(devices map[string]hubitatStructs.NormalizedDevice) error {
	ids := maps.Keys(devices)
	slices.Sort(ids)

	var errs error
	published := 0
	for _, id := range ids {
		d := devices[id]
		payload, err := json.Marshal(d)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("encoding device %s: %w", id, err))
			continue
		}
		topic := s.Topic(d)
		token := s.publisher.Publish(topic, s.qos, true, payload)
		if !token.WaitTimeout(publishTimeout) {
			errs = multierr.Append(errs, fmt.Errorf("publishing %s: timeout after %v", topic, publishTimeout))
			continue
		}
		if err := token.Error(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publishing %s: %w", topic, err))
			continue
		}
		published++
	}
	s.logger.Infof("Published %d of %d devices to mqtt", published, len(ids))
	return errs
}
