package sender

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jjscheduler/sched/internal/domain"
)

// MQTTConfig configures the broker connection used for every dispatch.
type MQTTConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	ClientIDPrefix string
	KeepaliveSec   int
	TLS            bool
	ConnectTimeout time.Duration
}

// MQTTChannel dispatches jobs by publishing to a topic. It connects lazily
// on first use and reconnects once per send when the client reports it is
// not ready; readiness is tracked with an atomic flag written from the
// client's own connection callbacks, since those fire on a library
// goroutine concurrently with the dispatch goroutine.
type MQTTChannel struct {
	client mqtt.Client
	ready  atomic.Bool
	cfg    MQTTConfig
}

func NewMQTTChannel(cfg MQTTConfig) *MQTTChannel {
	c := &MQTTChannel{cfg: cfg}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL(cfg)).
		SetClientID(clientID(cfg.ClientIDPrefix)).
		SetKeepAlive(time.Duration(cfg.KeepaliveSec) * time.Second).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(mqtt.Client) { c.ready.Store(true) }
	opts.OnConnectionLost = func(mqtt.Client, error) { c.ready.Store(false) }

	c.client = mqtt.NewClient(opts)
	return c
}

func brokerURL(cfg MQTTConfig) string {
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

func clientID(prefix string) string {
	if prefix == "" {
		prefix = "sched-"
	}
	return fmt.Sprintf("%s%06d", prefix, rand.Intn(1_000_000))
}

func (c *MQTTChannel) Send(ctx context.Context, job *domain.Job) Result {
	topic := strings.TrimSpace(job.MQTTTopic)
	if topic == "" {
		return Result{Success: false, Detail: "mqtt_topic empty"}
	}

	if !c.ready.Load() {
		token := c.client.Connect()
		if !token.WaitTimeout(c.cfg.ConnectTimeout) || token.Error() != nil {
			detail := "MQTT reconnect failed"
			if err := token.Error(); err != nil {
				detail = fmt.Sprintf("MQTT reconnect failed: %v", err)
			}
			return Result{Success: false, Detail: detail}
		}
	}

	token := c.client.Publish(topic, byte(job.QoS), job.Retained, job.Payload)
	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return Result{Success: false, Detail: "MQTT publish error: " + ctx.Err().Error()}
	case <-done:
	}

	if err := token.Error(); err != nil {
		return Result{Success: false, Detail: "MQTT publish error: " + err.Error()}
	}
	return Result{Success: true, Detail: "published"}
}
