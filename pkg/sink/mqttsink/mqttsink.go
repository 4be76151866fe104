// Package mqttsink publishes the multiplexed byte stream to an MQTT
// topic via github.com/eclipse/paho.mqtt.golang — standard practice
// for embedded/IoT fleet remote logging, the target deployment
// spec.md describes. Grounded on the client-options and
// auto-reconnect wiring of robotalks-robo.go's pkg/l1/comm/mqtt.
package mqttsink

import (
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nowtech-go/logmux/pkg/sink"
)

// Config describes the broker and topic to publish multiplexed
// output to.
type Config struct {
	BrokerURL      string
	ClientID       string
	Topic          string
	QoS            byte
	PublishTimeout time.Duration
	RateBytesPerS  int64
	BurstBytes     int64
}

// Sink publishes every Transmit call as one MQTT message on a fixed
// topic, auto-reconnecting the same way robotalks-robo.go's Queue
// does (SetAutoReconnect(true)).
type Sink struct {
	client  paho.Client
	topic   string
	qos     byte
	timeout time.Duration
	limiter *sink.RateLimiter
}

// New connects to cfg.BrokerURL and returns a ready Sink. Connection
// is established eagerly (unlike quicsink's lazy dial) because MQTT
// brokers are meant to be always-on infrastructure and paho already
// handles retry internally via SetAutoReconnect.
func New(cfg Config) (*Sink, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true)

	client := paho.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var limiter *sink.RateLimiter
	if cfg.RateBytesPerS > 0 {
		limiter = sink.NewRateLimiter(cfg.RateBytesPerS, cfg.BurstBytes)
	}
	return &Sink{client: client, topic: cfg.Topic, qos: cfg.QoS, timeout: timeout, limiter: limiter}, nil
}

// Transmit publishes buffer[:length] as one retained-false MQTT
// message. Publishing is asynchronous in paho; inFlight is cleared
// once the publish token resolves or PublishTimeout elapses, whichever
// comes first (success or failure — spec.md §7
// treats sink failure as never-completing only for synchronous
// sinks that never signal completion at all; paho always signals).
func (s *Sink) Transmit(buffer []byte, length int, inFlight *atomic.Bool) {
	payload := make([]byte, length)
	copy(payload, buffer[:length])
	go func() {
		defer inFlight.Store(false)
		s.limiter.Wait(int64(length))
		token := s.client.Publish(s.topic, s.qos, false, payload)
		token.WaitTimeout(s.timeout)
	}()
}

// Close disconnects from the broker, waiting up to 250ms for
// in-flight publishes to drain.
func (s *Sink) Close() error {
	s.client.Disconnect(250)
	return nil
}
