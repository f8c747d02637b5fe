package logger

import (
	"context"
	"testing"
)

func TestNewZapLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "json format with debug level", config: Config{Level: DebugLevel, Format: JSONFormat}},
		{name: "text format with info level", config: Config{Level: InfoLevel, Format: TextFormat}},
		{name: "json format with warn level", config: Config{Level: WarnLevel, Format: JSONFormat}},
		{name: "json format with error level", config: Config{Level: ErrorLevel, Format: JSONFormat}},
		{name: "invalid level falls back to info", config: Config{Level: "invalid", Format: JSONFormat}},
		{name: "unknown format falls back to json", config: Config{Level: InfoLevel, Format: "unknown"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewZapLogger(tt.config)
			if err != nil {
				t.Fatalf("NewZapLogger() error = %v", err)
			}
			if log == nil {
				t.Fatal("NewZapLogger() returned nil logger")
			}
			_ = log.Sync()
		})
	}
}

func TestZapLogger_With(t *testing.T) {
	log, err := NewZapLogger(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer log.Sync()

	child := log.With("collection", "orders", "operation", "create")
	if child == nil {
		t.Fatal("With returned nil logger")
	}

	// Chained children must not panic and keep accumulating fields.
	grandchild := child.With("request_id", "req-1")
	grandchild.Info("document inserted")
}

func TestZapLogger_WithContext(t *testing.T) {
	log, err := NewZapLogger(DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer log.Sync()

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{name: "context with request ID", ctx: ContextWithRequestID(context.Background(), "req-123")},
		{name: "context without request ID", ctx: context.Background()},
		{name: "nil context", ctx: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctxLogger := log.WithContext(tt.ctx)
			if ctxLogger == nil {
				t.Fatal("WithContext returned nil logger")
			}
			ctxLogger.Info("handled")
		})
	}
}

func TestRequestIDFromContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{
			name: "context with request ID",
			ctx:  ContextWithRequestID(context.Background(), "req-123"),
			want: "req-123",
		},
		{
			name: "context without request ID",
			ctx:  context.Background(),
			want: "",
		},
		{
			name: "nil context",
			ctx:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequestIDFromContext(tt.ctx); got != tt.want {
				t.Errorf("RequestIDFromContext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Debug("dropped")
	log.Info("dropped")
	log.Warn("dropped")
	log.Error("dropped")

	if log.With("k", "v") == nil {
		t.Fatal("With returned nil logger")
	}
	if log.WithContext(context.Background()) == nil {
		t.Fatal("WithContext returned nil logger")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{input: "debug", want: DebugLevel},
		{input: "info", want: InfoLevel},
		{input: "warn", want: WarnLevel},
		{input: "warning", want: WarnLevel},
		{input: "error", want: ErrorLevel},
		{input: "invalid", want: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLogFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    LogFormat
		wantErr bool
	}{
		{input: "json", want: JSONFormat},
		{input: "text", want: TextFormat},
		{input: "console", want: TextFormat},
		{input: "invalid", want: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLogFormat() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseLogFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkZapLogger_Info(b *testing.B) {
	log, _ := NewZapLogger(DefaultConfig())
	defer log.Sync()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Info("benchmark message", "iteration", i)
	}
}

func BenchmarkZapLogger_WithContext(b *testing.B) {
	log, _ := NewZapLogger(DefaultConfig())
	defer log.Sync()

	ctx := ContextWithRequestID(context.Background(), "bench-123")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.WithContext(ctx).Info("benchmark message", "iteration", i)
	}
}
