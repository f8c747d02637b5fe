package health

import (
	"context"
	"strings"
	"testing"
	"time"
)

// fakeDependency is a Checker with a fixed outcome and optional latency.
type fakeDependency struct {
	name   string
	result CheckResult
	delay  time.Duration
}

func (f *fakeDependency) Check(ctx context.Context) CheckResult {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return f.result
}

func (f *fakeDependency) Name() string {
	return f.name
}

func dependency(name string, status Status) *fakeDependency {
	return &fakeDependency{
		name:   name,
		result: CheckResult{Name: name, Status: status},
	}
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()
	if registry == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if len(registry.List()) != 0 {
		t.Errorf("new registry should have no checkers, got %d", len(registry.List()))
	}
}

func TestRegistry_RegisterReplacesSameName(t *testing.T) {
	registry := NewRegistry()
	registry.Register(dependency("mongodb", StatusUnhealthy))
	registry.Register(dependency("mongodb", StatusHealthy))

	result, err := registry.CheckOne(context.Background(), "mongodb")
	if err != nil {
		t.Fatalf("check one: %v", err)
	}
	if result.Status != StatusHealthy {
		t.Errorf("expected the later registration to win, got %s", result.Status)
	}
	if len(registry.List()) != 1 {
		t.Errorf("expected one checker after replacement, got %d", len(registry.List()))
	}
}

func TestRegistry_RegisterFunc(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("redis", func(ctx context.Context) CheckResult {
		return CheckResult{Name: "redis", Status: StatusHealthy, Message: "PONG"}
	})

	result, err := registry.CheckOne(context.Background(), "redis")
	if err != nil {
		t.Fatalf("check one: %v", err)
	}
	if result.Message != "PONG" {
		t.Errorf("expected the function result to pass through, got %q", result.Message)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry()
	registry.Register(dependency("mongodb", StatusHealthy))
	registry.Unregister("mongodb")
	registry.Unregister("never-registered")

	if len(registry.List()) != 0 {
		t.Errorf("expected empty registry after unregister, got %v", registry.List())
	}
	if _, err := registry.CheckOne(context.Background(), "mongodb"); err == nil {
		t.Error("expected CheckOne to fail for an unregistered checker")
	}
}

func TestRegistry_CheckAllHealthy(t *testing.T) {
	registry := NewRegistry()
	registry.Register(dependency("mongodb", StatusHealthy))
	registry.Register(dependency("redis", StatusHealthy))
	registry.Register(dependency("eventbus", StatusHealthy))

	result := registry.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("expected healthy aggregate, got %s", result.Status)
	}
	if !result.IsHealthy() {
		t.Error("expected IsHealthy() to be true")
	}
	if len(result.Checks) != 3 {
		t.Fatalf("expected 3 results, got %d", len(result.Checks))
	}
}

func TestRegistry_CheckResultsSortedByName(t *testing.T) {
	registry := NewRegistry()
	registry.Register(dependency("redis", StatusHealthy))
	registry.Register(dependency("eventbus", StatusHealthy))
	registry.Register(dependency("mongodb", StatusHealthy))

	result := registry.Check(context.Background())

	want := []string{"eventbus", "mongodb", "redis"}
	for i, name := range want {
		if result.Checks[i].Name != name {
			t.Fatalf("expected results ordered %v, got %s at %d", want, result.Checks[i].Name, i)
		}
	}
}

func TestRegistry_CheckOneUnhealthyMarksAggregate(t *testing.T) {
	registry := NewRegistry()
	registry.Register(dependency("mongodb", StatusHealthy))
	registry.Register(dependency("eventbus", StatusUnhealthy))

	result := registry.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy aggregate, got %s", result.Status)
	}
	if result.IsHealthy() {
		t.Error("expected IsHealthy() to be false")
	}
}

func TestRegistry_CheckDegraded(t *testing.T) {
	registry := NewRegistry()
	registry.Register(dependency("mongodb", StatusHealthy))
	registry.Register(dependency("redis", StatusDegraded))

	result := registry.Check(context.Background())

	if result.Status != StatusDegraded {
		t.Errorf("expected degraded aggregate, got %s", result.Status)
	}
	if result.IsHealthy() {
		t.Error("degraded must not count as healthy")
	}
}

func TestRegistry_CheckUnhealthyOutranksDegraded(t *testing.T) {
	registry := NewRegistry()
	registry.Register(dependency("redis", StatusDegraded))
	registry.Register(dependency("mongodb", StatusUnhealthy))
	registry.Register(dependency("eventbus", StatusHealthy))

	result := registry.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy to win, got %s", result.Status)
	}
}

func TestRegistry_CheckEmptyRegistry(t *testing.T) {
	result := NewRegistry().Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("expected an empty registry to report healthy, got %s", result.Status)
	}
	if len(result.Checks) != 0 {
		t.Errorf("expected no results, got %d", len(result.Checks))
	}
}

func TestRegistry_CheckRunsConcurrently(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"mongodb", "redis", "eventbus"} {
		registry.Register(&fakeDependency{
			name:   name,
			result: CheckResult{Name: name, Status: StatusHealthy},
			delay:  100 * time.Millisecond,
		})
	}

	start := time.Now()
	result := registry.Check(context.Background())
	elapsed := time.Since(start)

	if len(result.Checks) != 3 {
		t.Fatalf("expected 3 results, got %d", len(result.Checks))
	}
	// Three 100ms checks in sequence would take 300ms.
	if elapsed > 250*time.Millisecond {
		t.Errorf("expected checks to run concurrently, took %v", elapsed)
	}
}

func TestRegistry_CheckOne(t *testing.T) {
	registry := NewRegistry()
	registry.Register(dependency("mongodb", StatusHealthy))

	result, err := registry.CheckOne(context.Background(), "mongodb")
	if err != nil {
		t.Fatalf("check one: %v", err)
	}
	if result.Name != "mongodb" || result.Status != StatusHealthy {
		t.Errorf("unexpected result %+v", result)
	}

	_, err = registry.CheckOne(context.Background(), "postgres")
	if err == nil {
		t.Fatal("expected an error for an unknown checker")
	}
	if !strings.Contains(err.Error(), "postgres") {
		t.Errorf("expected the unknown name in the error, got %v", err)
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	registry := NewRegistry()
	registry.Register(dependency("redis", StatusHealthy))
	registry.Register(dependency("eventbus", StatusHealthy))
	registry.Register(dependency("mongodb", StatusHealthy))

	names := registry.List()
	want := []string{"eventbus", "mongodb", "redis"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestRegistry_CheckPropagatesContext(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterFunc("slow", func(ctx context.Context) CheckResult {
		select {
		case <-ctx.Done():
			return CheckResult{Name: "slow", Status: StatusUnhealthy, Error: ctx.Err().Error()}
		case <-time.After(5 * time.Second):
			return CheckResult{Name: "slow", Status: StatusHealthy}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := registry.Check(ctx)
	if time.Since(start) > time.Second {
		t.Fatal("expected the cancelled check to return promptly")
	}
	if result.Status != StatusUnhealthy {
		t.Errorf("expected the timed-out check to report unhealthy, got %s", result.Status)
	}
}

func TestAggregatedResult_IsHealthy(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusHealthy, true},
		{StatusDegraded, false},
		{StatusUnhealthy, false},
	}
	for _, tc := range cases {
		got := AggregatedResult{Status: tc.status}.IsHealthy()
		if got != tc.want {
			t.Errorf("IsHealthy() with %s = %v, want %v", tc.status, got, tc.want)
		}
	}
}
