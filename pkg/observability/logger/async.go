package logger

import (
	"context"
	"sync"
	"sync/atomic"
)

// AsyncConfig configures the async logger wrapper.
type AsyncConfig struct {
	Enabled      bool
	QueueSize    int
	WorkerCount  int
	DropWhenFull bool
}

type entryLevel int

const (
	entryDebug entryLevel = iota
	entryInfo
	entryWarn
	entryError
)

type queueEntry struct {
	sink  Logger
	level entryLevel
	msg   string
	args  []any
}

func (e queueEntry) emit() {
	switch e.level {
	case entryDebug:
		e.sink.Debug(e.msg, e.args...)
	case entryInfo:
		e.sink.Info(e.msg, e.args...)
	case entryWarn:
		e.sink.Warn(e.msg, e.args...)
	case entryError:
		e.sink.Error(e.msg, e.args...)
	}
}

type dispatcher struct {
	entries      chan queueEntry
	dropWhenFull bool
	wg           sync.WaitGroup
	stopOnce     sync.Once
	stopped      atomic.Bool
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for entry := range d.entries {
		entry.emit()
	}
}

func (d *dispatcher) stop() {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.entries)
		d.wg.Wait()
	})
}

// AsyncLogger queues entries and writes them through worker goroutines so
// request paths never block on log encoding. Child loggers created via With
// and WithContext share the parent queue.
type AsyncLogger struct {
	base       Logger
	dispatcher *dispatcher
}

// WrapAsync wraps base with async dispatch when enabled. Queue size defaults
// to 1024 entries and worker count to 1.
func WrapAsync(base Logger, cfg AsyncConfig) Logger {
	if !cfg.Enabled {
		return base
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	d := &dispatcher{
		entries:      make(chan queueEntry, queueSize),
		dropWhenFull: cfg.DropWhenFull,
	}
	for i := 0; i < workerCount; i++ {
		d.wg.Add(1)
		go d.run()
	}

	return &AsyncLogger{
		base:       base,
		dispatcher: d,
	}
}

// Debug queues a debug-level entry.
func (l *AsyncLogger) Debug(msg string, args ...any) {
	l.enqueue(entryDebug, msg, args...)
}

// Info queues an info-level entry.
func (l *AsyncLogger) Info(msg string, args ...any) {
	l.enqueue(entryInfo, msg, args...)
}

// Warn queues a warn-level entry.
func (l *AsyncLogger) Warn(msg string, args ...any) {
	l.enqueue(entryWarn, msg, args...)
}

// Error queues an error-level entry.
func (l *AsyncLogger) Error(msg string, args ...any) {
	l.enqueue(entryError, msg, args...)
}

// With returns a child logger with additional fields sharing the same queue.
func (l *AsyncLogger) With(args ...any) Logger {
	return &AsyncLogger{
		base:       l.base.With(args...),
		dispatcher: l.dispatcher,
	}
}

// WithContext returns a child logger enriched from ctx sharing the same queue.
func (l *AsyncLogger) WithContext(ctx context.Context) Logger {
	return &AsyncLogger{
		base:       l.base.WithContext(ctx),
		dispatcher: l.dispatcher,
	}
}

// Close drains the queue and stops the workers. Entries logged after Close
// are written synchronously.
func (l *AsyncLogger) Close() {
	l.dispatcher.stop()
}

func (l *AsyncLogger) enqueue(level entryLevel, msg string, args ...any) {
	if l.dispatcher.stopped.Load() {
		queueEntry{sink: l.base, level: level, msg: msg, args: args}.emit()
		return
	}

	entry := queueEntry{
		sink:  l.base,
		level: level,
		msg:   msg,
		args:  args,
	}

	if l.dispatcher.dropWhenFull {
		select {
		case l.dispatcher.entries <- entry:
		default:
		}
		return
	}

	l.dispatcher.entries <- entry
}
