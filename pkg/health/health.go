package health

import (
	"context"
	"sync"
	"time"

	"realtime-chat/backend/pkg/logger"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working but with reduced functionality
	StatusDegraded Status = "degraded"
)

// Component represents a system component that can be health-checked
type Component struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Description string         `json:"description,omitempty"`
	Error       string         `json:"error,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
}

// Result is what a check reports
type Result struct {
	Status      Status
	Description string
	Details     map[string]any
	Err         error
}

// Check represents a health check function
type Check func(ctx context.Context) Result

// Checker manages health checks for the system
type Checker struct {
	checks      map[string]Check
	critical    map[string]bool
	components  map[string]*Component
	checkPeriod time.Duration
	timeout     time.Duration
	mutex       sync.RWMutex
	log         *logger.Logger
}

// NewChecker creates a new health checker
func NewChecker(log *logger.Logger, checkPeriod time.Duration) *Checker {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Checker{
		checks:      make(map[string]Check),
		critical:    make(map[string]bool),
		components:  make(map[string]*Component),
		checkPeriod: checkPeriod,
		timeout:     3 * time.Second,
		log:         log,
	}
}

// RegisterCheck registers a new health check. A critical component that is
// down makes the whole system unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = check
	c.critical[name] = critical
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Description: "Not checked yet",
	}
}

// RunChecks executes all registered health checks
func (c *Checker) RunChecks(ctx context.Context) {
	c.mutex.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mutex.RUnlock()

	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		result := check(checkCtx)
		cancel()

		c.mutex.Lock()
		component := c.components[name]
		component.Status = result.Status
		component.Description = result.Description
		component.Details = result.Details
		component.LastChecked = time.Now()
		component.Error = ""
		if result.Err != nil {
			component.Error = result.Err.Error()
		}
		c.mutex.Unlock()

		if result.Err != nil {
			c.log.Error("Health check failed",
				"component", name,
				"status", string(result.Status),
				"error", result.Err.Error(),
			)
		} else {
			c.log.Debug("Health check completed",
				"component", name,
				"status", string(result.Status),
			)
		}
	}
}

// Start runs the checks immediately and then every checkPeriod until ctx is cancelled
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.RunChecks(ctx)

		ticker := time.NewTicker(c.checkPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunChecks(ctx)
			}
		}
	}()
}

// GetStatus returns a copy of the current component states
func (c *Checker) GetStatus() map[string]*Component {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make(map[string]*Component, len(c.components))
	for k, v := range c.components {
		componentCopy := *v
		result[k] = &componentCopy
	}

	return result
}

// IsSystemHealthy returns true if all critical components are up
func (c *Checker) IsSystemHealthy() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for name, component := range c.components {
		if component.Status == StatusDown && c.critical[name] {
			return false
		}
	}

	return true
}

// RegisterDatabaseCheck registers the critical database check
func (c *Checker) RegisterDatabaseCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("database", true, func(ctx context.Context) Result {
		if err := ping(ctx); err != nil {
			return Result{Status: StatusDown, Description: "Database connection failed", Err: err}
		}
		return Result{Status: StatusUp, Description: "Database connection is established"}
	})
}

// RegisterRedisCheck registers the broadcast transport check. Redis being
// down only stops live delivery, so it reports degraded, not down.
func (c *Checker) RegisterRedisCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("redis", false, func(ctx context.Context) Result {
		start := time.Now()
		if err := ping(ctx); err != nil {
			return Result{Status: StatusDegraded, Description: "Broadcast transport unreachable", Err: err}
		}
		return Result{
			Status:      StatusUp,
			Description: "Broadcast transport is reachable",
			Details:     map[string]any{"latency_ms": time.Since(start).Milliseconds()},
		}
	})
}
