package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/responder/core/model"
	"github.com/kilianp07/responder/core/monitoring"
	coremqtt "github.com/kilianp07/responder/core/mqtt"
	"github.com/kilianp07/responder/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker           string          `json:"broker"`
	ClientID         string          `json:"client_id"`
	Username         string          `json:"username"`
	Password         string          `json:"password"`
	ProposalTopic    string          `json:"proposal_topic"`
	EventTopic       string          `json:"event_topic"`
	UseTLS           bool            `json:"use_tls"`
	ClientCert       string          `json:"client_cert"`
	ClientKey        string          `json:"client_key"`
	CABundle         string          `json:"ca_bundle"`
	AuthMethod       string          `json:"auth_method"`
	QoS              map[string]byte `json:"qos"`
	LWTTopic         string          `json:"lwt_topic"`
	LWTPayload       string          `json:"lwt_payload"`
	LWTQoS           byte            `json:"lwt_qos"`
	LWTRetain        bool            `json:"lwt_retain"`
	MaxRetries       int             `json:"max_retries"`
	BackoffMS        int             `json:"backoff_ms"`
	HandlerTimeoutMS int             `json:"handler_timeout_ms"`
	TLSConfig        *tls.Config     `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient carries both directions of the decision-process channel: it
// publishes proposal requests and consumes proposals. Proposals are acked
// only after they were ingested, so a failed ingestion is redelivered.
type PahoClient struct {
	cli           pahoClient
	proposalTopic string
	eventTopic    string
	qos           map[string]byte
	logger        logger.Logger
	maxRetries    int
	backoff       time.Duration
	timeout       time.Duration

	mu      sync.RWMutex
	handler coremqtt.ProposalHandler
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker. Proposals are consumed once a
// handler is attached with SubscribeProposals.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		proposalTopic: cfg.ProposalTopic,
		eventTopic:    cfg.EventTopic,
		logger:        log,
		qos:           cfg.QoS,
		maxRetries:    cfg.MaxRetries,
		backoff:       time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout:       time.Duration(cfg.HandlerTimeoutMS) * time.Millisecond,
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}
	if pc.timeout <= 0 {
		pc.timeout = 10 * time.Second
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		pc.subscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	// keep the session so unacked proposals survive a reconnect
	opts.SetCleanSession(false)
	opts.SetAutoAckDisabled(true)
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) qosFor(key string) byte {
	if q, ok := p.qos[key]; ok {
		return q
	}
	return 1
}

// SubscribeProposals attaches the handler and subscribes to the proposal
// topic. The subscription is renewed on every reconnect.
func (p *PahoClient) SubscribeProposals(h coremqtt.ProposalHandler) error {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
	if p.proposalTopic == "" {
		return fmt.Errorf("mqtt: proposal topic not configured")
	}
	token := p.cli.Subscribe(p.proposalTopic, p.qosFor("proposal"), p.onProposal)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", p.proposalTopic, token.Error())
	}
	p.logger.Infof("subscribed to proposals on %s", p.proposalTopic)
	return nil
}

func (p *PahoClient) subscribe(c paho.Client) {
	p.mu.RLock()
	h := p.handler
	p.mu.RUnlock()
	if h == nil || p.proposalTopic == "" {
		return
	}
	if token := c.Subscribe(p.proposalTopic, p.qosFor("proposal"), p.onProposal); token.Wait() && token.Error() != nil {
		p.logger.Errorf("subscribe error: %v", token.Error())
	}
}

func (p *PahoClient) onProposal(_ paho.Client, msg paho.Message) {
	defer monitoring.Recover()
	var prop model.Proposal
	if err := json.Unmarshal(msg.Payload(), &prop); err != nil || prop.EventID == "" {
		// a payload that never decodes would be redelivered forever
		p.logger.Infof("dropping proposal: %v", fmt.Errorf("%w: %s", coremqtt.ErrMalformedProposal, msg.Payload()))
		msg.Ack()
		return
	}

	p.mu.RLock()
	h := p.handler
	p.mu.RUnlock()
	if h == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := h.Ingest(ctx, prop); err != nil {
		p.logger.Errorf("ingest proposal event=%s vehicle=%s: %v", prop.EventID, prop.VehicleID, err)
		monitoring.CaptureException(err, map[string]string{
			"module":     "mqtt",
			"event_id":   prop.EventID,
			"vehicle_id": prop.VehicleID,
		})
		return
	}
	msg.Ack()
}

// PublishEvent sends a proposal request, retrying with exponential backoff.
func (p *PahoClient) PublishEvent(ctx context.Context, decl model.EventDeclaration) error {
	if p.cli == nil || !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	payload, err := json.Marshal(decl)
	if err != nil {
		return err
	}

	qos := p.qosFor("event")
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(p.eventTopic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("sent proposal request for event %s to %s", decl.EventID, p.eventTopic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("publish event %s: %w", decl.EventID, ctx.Err())
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	monitoring.CaptureException(publishErr, map[string]string{"module": "mqtt", "event_id": decl.EventID})
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}

var _ coremqtt.Publisher = (*PahoClient)(nil)
