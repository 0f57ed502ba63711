package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"callrelay/internal/broker"
	"callrelay/internal/config"
	"callrelay/internal/constants"
	"callrelay/internal/delivery"
	"callrelay/internal/ingress"
	"callrelay/internal/logger"
	"callrelay/pkg/bootstrap"
	"callrelay/pkg/circuitbreaker"
	"callrelay/pkg/health"
	"callrelay/pkg/metrics"
	"callrelay/pkg/middleware"
	"callrelay/pkg/ratelimit"
	"callrelay/pkg/ratewindow"
	"callrelay/pkg/resolver"
)

// defaultServiceName matches the historical ingress deployment. It doubles
// as the publish topic prefix when ingress.publish_topic is unset.
const defaultServiceName = "legacy_proxy_1"

type App struct {
	*bootstrap.Base
	serviceName string
	forwarder   ingress.Forwarder
	client      *delivery.Client
	window      *ratewindow.Window
	router      *gin.Engine
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("ingress-service")
	}
	return &App{
		Base:   bootstrap.NewBase(cfg, log),
		window: ratewindow.New(cfg.Ingress.RPSWindow),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	a.serviceName = a.Config.App.ServiceName
	if a.serviceName == "" {
		a.serviceName = defaultServiceName
	}

	if err := a.initForwarder(ctx); err != nil {
		return fmt.Errorf("failed to initialize forwarder: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return nil
}

func (a *App) initForwarder(ctx context.Context) error {
	switch a.Config.Ingress.ForwardMode {
	case constants.ForwardModeMQTT:
		// Publisher-only session: no subscriptions, no message handler.
		if err := a.InitSession(broker.SessionOptions{ClientID: a.serviceName}); err != nil {
			return err
		}
		if err := a.Session.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}

		topic := a.Config.Ingress.PublishTopic
		if topic == "" {
			topic = constants.WorkPublishTopic(a.serviceName)
		}

		a.forwarder = ingress.NewMQTTForwarder(a.Session, topic, byte(a.Config.Broker.MQTT.QoS))
		a.Logger.InfowCtx(ctx, "Forwarding over MQTT", "topic", topic)
		return nil

	case constants.ForwardModeHTTP:
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
		a.forwarder = ingress.NewHTTPForwarder(client)
		a.Logger.InfowCtx(ctx, "Forwarding over HTTP", "target", a.Config.Target.URL)
		return nil

	default:
		return fmt.Errorf("unknown forward mode: %s", a.Config.Ingress.ForwardMode)
	}
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TrackingMiddleware(a.window))

	if a.Config.Ingress.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.Ingress.RateLimit.RPS,
			Burst:           a.Config.Ingress.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.Ingress.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.Ingress.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.Logger.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	handler := ingress.NewHandler(a.forwarder, a.Logger)
	handler.RegisterRoutes(router)

	metrics.RegisterIngressMetrics()
	switch a.Config.Ingress.ForwardMode {
	case constants.ForwardModeMQTT:
		metrics.RegisterSessionMetrics()
	case constants.ForwardModeHTTP:
		metrics.RegisterDeliveryMetrics()
		if a.Config.CircuitBreaker.Enabled {
			metrics.RegisterCircuitBreakerMetrics()
		}
	}

	healthRegistry := health.NewCheckerRegistry()
	if a.Session != nil {
		healthRegistry.Register(health.NewBrokerChecker(a.Session))
	}
	if a.Config.Ingress.ForwardMode == constants.ForwardModeHTTP {
		targetChecker, err := health.NewTargetChecker(a.Config.Target.URL)
		if err != nil {
			return fmt.Errorf("failed to create target checker: %w", err)
		}
		healthRegistry.Register(targetChecker)
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.reportRate(gCtx)
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

// reportRate publishes the rolling request rate on a fixed cadence, the
// way the original proxy surfaced its RPS figure.
func (a *App) reportRate(ctx context.Context) error {
	ticker := time.NewTicker(a.Config.Ingress.RPSReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rate := a.window.Rate()
			metrics.SetIngressRequestRate(rate)
			a.Logger.InfowCtx(ctx, "Request rate",
				"rps", rate,
				"window_count", a.window.Count(),
			)
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.client != nil {
			a.client.Close()
		}

		return errs
	}

	return a.Base.Shutdown(shutdownCtx, additionalShutdown)
}
