package health

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Checkable is implemented by the store, cache and event bus adapters.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker probes a Checkable adapter under a timeout.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker wraps an adapter. A zero timeout defaults to 5s.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{
		name:    name,
		adapter: adapter,
		timeout: timeout,
	}
}

func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.adapter.HealthCheck(checkCtx)
	duration := time.Since(start)

	if err != nil {
		return CheckResult{
			Name:      c.name,
			Status:    StatusUnhealthy,
			Error:     err.Error(),
			Timestamp: time.Now(),
			Duration:  duration,
		}
	}

	return CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  duration,
	}
}

func (c *AdapterChecker) Name() string {
	return c.name
}

// NewDatabaseChecker probes the document store backing the collections.
func NewDatabaseChecker(name string, db Checkable) *AdapterChecker {
	return NewAdapterChecker(name, db, 5*time.Second)
}

// NewCacheChecker probes the response cache backend. Its timeout is
// shorter than the database's; a cache that slow is as good as down.
func NewCacheChecker(name string, cache Checkable) *AdapterChecker {
	return NewAdapterChecker(name, cache, 3*time.Second)
}

// NewBrokerChecker probes the event bus carrying entity change events.
func NewBrokerChecker(name string, broker Checkable) *AdapterChecker {
	return NewAdapterChecker(name, broker, 5*time.Second)
}

// CompositeChecker groups several checkers under one name, reporting the
// worst status among them.
type CompositeChecker struct {
	name     string
	checkers []Checker
}

func NewCompositeChecker(name string, checkers ...Checker) *CompositeChecker {
	return &CompositeChecker{
		name:     name,
		checkers: checkers,
	}
}

func (c *CompositeChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	status := StatusHealthy
	var failures []string

	for _, checker := range c.checkers {
		result := checker.Check(ctx)
		status = worstStatus(status, result.Status)
		if result.Status == StatusUnhealthy && result.Error != "" {
			failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Error))
		}
	}

	result := CheckResult{
		Name:      c.name,
		Status:    status,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if len(failures) > 0 {
		result.Error = strings.Join(failures, "; ")
	} else if status == StatusHealthy {
		result.Message = "all sub-checks passed"
	}
	return result
}

func (c *CompositeChecker) Name() string {
	return c.name
}
