package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"callrelay/internal/bridge"
	"callrelay/internal/broker"
	"callrelay/internal/config"
	"callrelay/internal/constants"
	"callrelay/internal/delivery"
	"callrelay/internal/logger"
	"callrelay/pkg/bootstrap"
	"callrelay/pkg/circuitbreaker"
	"callrelay/pkg/health"
	"callrelay/pkg/metrics"
	"callrelay/pkg/resolver"
)

// defaultServiceName matches the historical bridge deployment; the retry
// topic derives from it, so renaming a deployment moves its retry traffic.
const defaultServiceName = "legacy_proxy_2"

type App struct {
	*bootstrap.Base
	serviceName string
	client      *delivery.Client
	service     *bridge.Service
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("bridge-service")
	}
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	a.serviceName = a.Config.App.ServiceName
	if a.serviceName == "" {
		a.serviceName = defaultServiceName
	}

	if err := a.initSession(); err != nil {
		return fmt.Errorf("failed to initialize broker session: %w", err)
	}

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize bridge: %w", err)
	}

	if err := a.Session.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	metrics.RegisterBridgeMetrics()
	metrics.RegisterDeliveryMetrics()
	metrics.RegisterSessionMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

// initSession builds the session before the bridge exists; messages only
// start flowing once Connect subscribes, and by then a.service is set.
func (a *App) initSession() error {
	qos := byte(a.Config.Broker.MQTT.QoS)

	return a.InitSession(broker.SessionOptions{
		ClientID: a.serviceName,
		Subscriptions: []broker.Subscription{
			{Topic: a.Config.Broker.MQTT.Topic, QoS: qos},
			{Topic: a.Config.Broker.MQTT.RetrySubscribeTopic, QoS: qos},
		},
		OnMessage: func(msg *broker.Message) {
			a.service.Enqueue(msg)
		},
	})
}

func (a *App) initService(ctx context.Context) error {
	targetURL := resolver.New(a.Config.Target.SkipDNSCache, a.Logger).Resolve(ctx, a.Config.Target.URL)

	var breaker *circuitbreaker.Wrapper
	if a.Config.CircuitBreaker.Enabled {
		breaker = circuitbreaker.NewWrapper(circuitbreaker.Config{
			Name:        "delivery",
			MaxRequests: a.Config.CircuitBreaker.MaxRequests,
			Interval:    a.Config.CircuitBreaker.Interval,
			Timeout:     a.Config.CircuitBreaker.Timeout,
			ReadyToTrip: circuitbreaker.TripOnFailureRatio(a.Config.CircuitBreaker.FailureRatio, a.Config.CircuitBreaker.MinRequests),
		})
	}

	client, err := delivery.NewClient(a.Config.Delivery, targetURL, breaker, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create delivery client: %w", err)
	}

	a.client = client
	a.service = bridge.NewService(client, a.Session, a.Config.Bridge, a.serviceName, a.Logger)
	return nil
}

func (a *App) initHTTPServer() error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewBrokerChecker(a.Session))

	targetChecker, err := health.NewTargetChecker(a.Config.Target.URL)
	if err != nil {
		return fmt.Errorf("failed to create target checker: %w", err)
	}
	healthRegistry.Register(targetChecker)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      mux,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Bridge worker starting",
			"work_topic", a.Config.Broker.MQTT.Topic,
			"retry_topic", constants.RetryPublishTopic(a.serviceName),
		)
		return a.service.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(gCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.client != nil {
			a.client.Close()
		}

		return errs
	}

	return a.Base.Shutdown(shutdownCtx, additionalShutdown)
}
