package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	configpkg "github.com/drblury/chatflow/internal/runtime/config"
	envelopepkg "github.com/drblury/chatflow/internal/runtime/envelope"
	errspkg "github.com/drblury/chatflow/internal/runtime/errors"
	idspkg "github.com/drblury/chatflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/chatflow/internal/runtime/logging"
	metricspkg "github.com/drblury/chatflow/internal/runtime/metrics"
	partitionpkg "github.com/drblury/chatflow/internal/runtime/partition"
	"github.com/drblury/chatflow/transport"
)

const shutdownTimeout = 10 * time.Second

var listen = func(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to use the defaults.
type ServiceDependencies struct {
	// TransportRegistry resolves Conf.StreamSystem. Nil selects transport.DefaultRegistry.
	TransportRegistry *transport.Registry
	// Hooks run after the built-in logging, metrics and alerting hooks.
	Hooks DecodeHooks
	// AlertFunc replaces the default error-log alert when AlertOnDecodeFailure is set.
	AlertFunc func(ctx BatchContext, rec DecodedRecord)
	// Extractor replaces PlainPayload for the consumer.
	Extractor PayloadExtractor
	// Registerer and Gatherer back the metrics collectors and /metrics.
	// Nil selects the Prometheus defaults.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// Clock replaces time.Now for envelope timestamps.
	Clock func() time.Time
}

// Service wires a stream transport to the Producer, the Consumer and the HTTP shim.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	transport transport.Transport
	producer  *Producer
	consumer  *Consumer
	metrics   *metricspkg.Collector
	gatherer  prometheus.Gatherer

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
	addrs         []string
}

// NewService constructs a Service for the supplied configuration and panics
// when it cannot. Use TryNewService to handle the error instead.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	s, err := TryNewService(conf, log, ctx, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// TryNewService constructs a Service for the supplied configuration.
func TryNewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	log.Info("Creating chat service",
		loggingpkg.LogFields{
			"stream_system": conf.StreamSystem,
			"config":        conf.String(),
		})

	s := &Service{
		Conf:     conf,
		Logger:   log,
		gatherer: deps.Gatherer,
	}

	if conf.MetricsEnabled {
		s.metrics = metricspkg.New(deps.Registerer)
		if err := s.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	producerOpts, err := s.producerOptions(deps)
	if err != nil {
		return nil, err
	}

	registry := deps.TransportRegistry
	if registry == nil {
		registry = transport.DefaultRegistry
	}
	caps := registry.GetCapabilities(conf.StreamSystem)
	if err := checkKeyLength(caps, conf.PartitionKeyLength); err != nil {
		return nil, err
	}
	producerOpts.Capabilities = caps

	tr, err := registry.Build(ctx, conf, loggingpkg.NewWatermillAdapter(log))
	if err != nil {
		return nil, err
	}
	if caps.SupportsSubscribe && tr.Subscriber == nil {
		_ = tr.Close()
		return nil, fmt.Errorf("%w: %s declares subscribe support", errspkg.ErrSubscriberRequired, conf.StreamSystem)
	}
	s.transport = tr

	s.producer, err = NewProducer(tr.Submitter, conf.StreamName, producerOpts)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}

	s.consumer = NewConsumer(ConsumerOptions{
		Extractor: deps.Extractor,
		Hooks:     s.decodeHooks(deps),
		Logger:    log,
	})
	return s, nil
}

func checkKeyLength(caps transport.Capabilities, length int) error {
	if length == 0 {
		length = partitionpkg.DefaultKeyLength
	}
	if !caps.AcceptsKeyLength(length) {
		return fmt.Errorf("transport %s accepts partition keys up to %d characters, got %d",
			caps.Name, caps.MaxPartitionKeyLength, length)
	}
	return nil
}

func (s *Service) producerOptions(deps ServiceDependencies) (ProducerOptions, error) {
	conf := s.Conf

	policy, err := ParsePublishPolicy(conf.PublishPolicy)
	if err != nil {
		return ProducerOptions{}, err
	}

	deriver, err := partitionpkg.New(conf.PartitionKeyAlgorithm, conf.PartitionKeyLength)
	if err != nil {
		return ProducerOptions{}, err
	}

	newID, ok := idspkg.ForFormat(conf.EnvelopeIDFormat)
	if !ok {
		return ProducerOptions{}, fmt.Errorf("unknown envelope id format %q", conf.EnvelopeIDFormat)
	}

	return ProducerOptions{
		Policy:       policy,
		AsyncTimeout: conf.AsyncPublishTimeout,
		Envelopes:    envelopepkg.NewBuilder(envelopepkg.WithIDGenerator(newID), envelopepkg.WithClock(deps.Clock)),
		Deriver:      deriver,
		Logger:       s.Logger,
		Metrics:      s.metrics,
	}, nil
}

func (s *Service) decodeHooks(deps ServiceDependencies) DecodeHooks {
	hooks := LoggingHooks(s.Logger)
	if s.metrics != nil {
		hooks = hooks.Merge(MetricsHooks(s.metrics))
	}
	if s.Conf.AlertOnDecodeFailure {
		alert := deps.AlertFunc
		if alert == nil {
			alert = LogAlert(s.Logger)
		}
		hooks = hooks.Merge(AlertingHooks(alert))
	}
	return hooks.Merge(deps.Hooks)
}

// Producer returns the service producer.
func (s *Service) Producer() *Producer { return s.producer }

// Consumer returns the service batch consumer.
func (s *Service) Consumer() *Consumer { return s.consumer }

// Transport returns the transport built from the configuration.
func (s *Service) Transport() transport.Transport { return s.transport }

// Handler returns the HTTP shim bound to the service producer.
func (s *Service) Handler() http.Handler {
	return NewHTTPHandler(s.producer, HTTPOptions{
		RequestTimeout: s.Conf.RequestTimeout,
		Logger:         s.Logger,
	})
}

// Start serves HTTP, and consumes the stream when the transport offers a
// subscriber, until ctx is cancelled. It then flushes pending publishes and
// closes the transport.
func (s *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.RegisterHTTPHandler(s.Conf.HTTPPort, "/", s.Handler())
	if s.metrics != nil && s.Conf.MetricsPort > 0 {
		s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", s.metricsHandler())
	}

	errs := make(chan error, 1)
	report := func(err error) {
		select {
		case errs <- err:
		default:
		}
		cancel()
	}

	var stream *StreamConsumer
	if s.transport.Subscriber != nil {
		var err error
		stream, err = NewStreamConsumer(s.transport.Subscriber, s.Conf.StreamName, s.consumer, StreamConsumerOptions{
			BatchSize: s.Conf.BatchSize,
			Linger:    s.Conf.BatchLinger,
			Mapper:    s.transport.Mapper(),
			Logger:    s.Logger,
		})
		if err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	servers, err := s.startHTTPServers(&wg, report)
	if err != nil {
		return err
	}

	if stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := stream.Run(ctx); err != nil {
				report(fmt.Errorf("consume stream: %w", err))
			}
		}()
	}

	<-ctx.Done()
	s.Logger.Info("Shutting down chat service", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.Logger.Error("Failed to stop HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
		}
	}
	wg.Wait()

	closeErr := s.Close(shutdownCtx)

	select {
	case err := <-errs:
		return errors.Join(err, closeErr)
	default:
		return closeErr
	}
}

// Close flushes in-flight publishes and closes the transport.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if s.producer != nil {
		if err := s.producer.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush producer: %w", err))
		}
	}
	if err := s.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Service) metricsHandler() http.Handler {
	if s.gatherer != nil {
		return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// RegisterHTTPHandler mounts handler on the server listening on port. Servers
// are started by Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

// Addresses lists the addresses the HTTP servers listen on once started.
func (s *Service) Addresses() []string {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()
	return append([]string(nil), s.addrs...)
}

func (s *Service) startHTTPServers(wg *sync.WaitGroup, report func(error)) ([]*http.Server, error) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	ports := make([]int, 0, len(s.httpServers))
	for port := range s.httpServers {
		ports = append(ports, port)
	}
	sort.Ints(ports)

	servers := make([]*http.Server, 0, len(ports))
	for _, port := range ports {
		addr := fmt.Sprintf(":%d", port)
		ln, err := listen(addr)
		if err != nil {
			for _, srv := range servers {
				_ = srv.Close()
			}
			return nil, fmt.Errorf("listen on %s: %w", addr, err)
		}

		srv := &http.Server{Addr: addr, Handler: s.httpServers[port], ReadHeaderTimeout: 5 * time.Second}
		servers = append(servers, srv)
		s.addrs = append(s.addrs, ln.Addr().String())
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": ln.Addr().String()})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("HTTP server failed", err, loggingpkg.LogFields{"address": addr})
				report(err)
			}
		}()
	}
	return servers, nil
}
