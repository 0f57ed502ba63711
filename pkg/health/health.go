package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type CheckerRegistry struct {
	checkers []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make([]Checker, 0),
	}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, checker)
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make(map[string]CheckResult)
	allHealthy := true
	anyDegraded := false

	for _, checker := range r.checkers {
		err := checker.Check(ctx)
		result := CheckResult{
			Timestamp: time.Now(),
		}

		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			allHealthy = false
		} else {
			result.Status = StatusHealthy
		}

		results[checker.Name()] = result
	}

	overallStatus := StatusHealthy
	if !allHealthy {
		overallStatus = StatusUnhealthy
	} else if anyDegraded {
		overallStatus = StatusDegraded
	}

	return Health{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// ConnectionStater is the slice of the broker session the checker needs.
type ConnectionStater interface {
	Connected() bool
}

type BrokerChecker struct {
	session ConnectionStater
}

func NewBrokerChecker(session ConnectionStater) *BrokerChecker {
	return &BrokerChecker{session: session}
}

func (c *BrokerChecker) Name() string {
	return "mqtt"
}

func (c *BrokerChecker) Check(ctx context.Context) error {
	if !c.session.Connected() {
		return fmt.Errorf("mqtt session is not connected")
	}
	return nil
}

// TargetChecker probes the downstream host with a plain TCP dial. The
// target only accepts POSTs, so an HTTP request is not a safe probe.
type TargetChecker struct {
	addr   string
	dialer *net.Dialer
}

func NewTargetChecker(rawURL string) (*TargetChecker, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target url: %w", err)
	}

	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}

	return &TargetChecker{
		addr:   net.JoinHostPort(u.Hostname(), port),
		dialer: &net.Dialer{},
	}, nil
}

func (c *TargetChecker) Name() string {
	return "target"
}

func (c *TargetChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("target dial failed: %w", err)
	}
	return conn.Close()
}
