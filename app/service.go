package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kilianp07/responder/api"
	"github.com/kilianp07/responder/config"
	coreaudit "github.com/kilianp07/responder/core/audit"
	"github.com/kilianp07/responder/core/dispatch"
	coremetrics "github.com/kilianp07/responder/core/metrics"
	coremon "github.com/kilianp07/responder/core/monitoring"
	coremqtt "github.com/kilianp07/responder/core/mqtt"
	"github.com/kilianp07/responder/core/notify"
	_ "github.com/kilianp07/responder/infra/audit"
	"github.com/kilianp07/responder/infra/logger"
	"github.com/kilianp07/responder/infra/metrics"
	"github.com/kilianp07/responder/infra/monitoring"
	"github.com/kilianp07/responder/infra/mqtt"
)

// Options tune which parts of the service are built.
type Options struct {
	// Consume subscribes to proposals and serves HTTP on Run.
	Consume bool
	// Publisher replaces the MQTT publisher, e.g. for dry runs.
	Publisher coremqtt.Publisher
}

// Service wires the coordinator to its store, transport and fan-out.
type Service struct {
	Coordinator *dispatch.Coordinator
	Store       StoreBackend

	cfg        *config.Config
	opts       Options
	hub        *notify.Hub
	client     *mqtt.PahoClient
	audit      coreaudit.Store
	sink       coremetrics.MetricsSink
	closeStore func() error
	log        logger.Logger

	mu   sync.Mutex
	addr net.Addr
}

// New creates the long-running service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	return NewWithOptions(cfg, Options{Consume: true})
}

// NewWithOptions creates a Service. One-shot commands build it without
// Consume so they never compete with the running service for proposals.
func NewWithOptions(cfg *config.Config, opts Options) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	st, closeStore, err := OpenStore(context.Background(), cfg.Store, logger.New("store"))
	if err != nil {
		return nil, err
	}
	svc := &Service{
		Store:      st,
		cfg:        cfg,
		opts:       opts,
		closeStore: closeStore,
		log:        logg,
		hub:        notify.NewHub(cfg.HTTP.StreamBuffer, logger.New("notify")),
	}

	svc.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	svc.audit, err = coreaudit.NewStore(cfg.Audit.Module())
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("audit store: %w", err)
	}

	pub := opts.Publisher
	if pub == nil {
		pub, err = svc.connect()
		if err != nil {
			_ = svc.Close()
			return nil, err
		}
	}

	coord, err := dispatch.NewCoordinator(st, pub, svc.hub, logger.New("coordinator"))
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	coord.SetMetrics(svc.sink)
	coord.SetAuditStore(svc.audit)
	svc.Coordinator = coord
	return svc, nil
}

// connect opens the MQTT client. Without a broker declarations are dropped.
func (s *Service) connect() (coremqtt.Publisher, error) {
	if s.cfg.MQTT.Broker == "" {
		s.log.Warnf("no MQTT broker configured, proposal requests are not sent")
		return coremqtt.NopPublisher{}, nil
	}
	mcfg := s.cfg.MQTT
	if !s.opts.Consume {
		// a one-shot client must not take over the service's persistent session
		mcfg.ClientID = fmt.Sprintf("%s-cli-%d", mcfg.ClientID, time.Now().UnixNano())
	}
	client, err := mqtt.NewPahoClient(mcfg)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	s.client = client
	return client, nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	return api.New(api.Deps{
		Ops:       s.Coordinator,
		Snapshots: s.Store,
		Registry:  s.Store,
		Hub:       s.hub,
		Audit:     s.audit,
		Token:     s.cfg.HTTP.AuditToken,
		Heartbeat: s.cfg.HTTP.Heartbeat(),
		Logger:    logger.New("api"),
	}).Router()
}

// Addr returns the address the HTTP server listens on once Run started it.
func (s *Service) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run starts the proposal consumer and the HTTP server and blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if !s.opts.Consume {
		return fmt.Errorf("service built without consumer")
	}
	if s.client != nil {
		if err := s.client.SubscribeProposals(s.Coordinator); err != nil {
			return fmt.Errorf("subscribe proposals: %w", err)
		}
	}

	metrics.StartVehicleStateCollector(ctx, s.hub, s.sink)
	if s.prometheusEnabled() {
		metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr)
	}

	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.HTTP.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer coremon.Recover()
		s.log.Infof("serving API on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
	// live streams only end with their subscription
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Service) prometheusEnabled() bool {
	for _, c := range s.cfg.Metrics.Sinks {
		if c.Type == "prometheus" {
			return true
		}
	}
	return false
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	var errs []error
	if s.audit != nil {
		errs = append(errs, s.audit.Close())
	}
	if s.closeStore != nil {
		errs = append(errs, s.closeStore())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
