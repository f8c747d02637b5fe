package store

import (
	"context"
	"strings"
	"testing"

	"github.com/crudkit/crudkit/pkg/config"
	"github.com/crudkit/crudkit/pkg/observability/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(string, ...any)                      {}
func (m *mockLogger) Info(string, ...any)                       {}
func (m *mockLogger) Warn(string, ...any)                       {}
func (m *mockLogger) Error(string, ...any)                      {}
func (m *mockLogger) With(...any) logger.Logger                 { return m }
func (m *mockLogger) WithContext(context.Context) logger.Logger { return m }

func TestNewStorageAdapter_EmptyType(t *testing.T) {
	adapter, err := NewStorageAdapter(config.DatabaseConfig{Type: ""}, &mockLogger{})
	if err == nil {
		t.Fatal("expected error for empty type")
	}
	if adapter != nil {
		t.Fatal("expected nil adapter")
	}
}

func TestNewStorageAdapter_UnsupportedType(t *testing.T) {
	_, err := NewStorageAdapter(config.DatabaseConfig{
		Type: "postgres",
	}, &mockLogger{})
	if err == nil {
		t.Fatal("expected unsupported type error")
	}
	if !strings.Contains(err.Error(), "unsupported database.type") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewStorageAdapter_MongoValidationError(t *testing.T) {
	_, err := NewStorageAdapter(config.DatabaseConfig{
		Type: config.DatabaseTypeMongoDB,
	}, &mockLogger{})
	if err == nil {
		t.Fatal("expected mongodb validation error")
	}
	if !strings.Contains(err.Error(), "mongodb URL is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewCacheAdapter_InmemoryReturnsNil(t *testing.T) {
	for _, cacheType := range []string{"", "inmemory"} {
		adapter, err := NewCacheAdapter(config.CacheConfig{Type: cacheType}, &mockLogger{})
		if err != nil {
			t.Fatalf("expected no error for type %q, got %v", cacheType, err)
		}
		if adapter != nil {
			t.Fatalf("expected nil adapter for type %q", cacheType)
		}
	}
}

func TestNewCacheAdapter_UnsupportedType(t *testing.T) {
	_, err := NewCacheAdapter(config.CacheConfig{Type: "memcached"}, &mockLogger{})
	if err == nil {
		t.Fatal("expected unsupported type error")
	}
	if !strings.Contains(err.Error(), "unsupported cache.type") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewCacheAdapter_RedisValidationError(t *testing.T) {
	_, err := NewCacheAdapter(config.CacheConfig{Type: "redis"}, &mockLogger{})
	if err == nil {
		t.Fatal("expected redis validation error")
	}
	if !strings.Contains(err.Error(), "redis URL is required") {
		t.Fatalf("unexpected error: %v", err)
	}
}
