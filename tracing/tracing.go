// Package tracing wraps OpenTelemetry spans, gocore stats and prometheus
// observations behind a single StartTracing call.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "marabu"

type statsKey struct{}

var defaultStat = gocore.NewStat("marabu", true)

type Options func(s *TraceOptions)

type TraceOptions struct {
	ParentStat *gocore.Stat
	Histogram  prometheus.Histogram
	Counter    prometheus.Counter
	Logger     ulogger.Logger
	LogMessage string
	LogArgs    []interface{}
	Attributes []attribute.KeyValue
}

func WithParentStat(stat *gocore.Stat) Options {
	return func(s *TraceOptions) {
		s.ParentStat = stat
	}
}

// WithHistogram sets the prometheus histogram to be observed, in seconds, when the span is finished.
func WithHistogram(histogram prometheus.Histogram) Options {
	return func(s *TraceOptions) {
		s.Histogram = histogram
	}
}

// WithCounter sets the prometheus counter to be incremented when the span is finished.
func WithCounter(counter prometheus.Counter) Options {
	return func(s *TraceOptions) {
		s.Counter = counter
	}
}

// WithLogMessage logs format at DEBUG level when the span starts and again,
// with the elapsed time, when it is finished.
func WithLogMessage(logger ulogger.Logger, format string, args ...interface{}) Options {
	return func(s *TraceOptions) {
		s.Logger = logger
		s.LogMessage = format
		s.LogArgs = args
	}
}

func WithTag(key, value string) Options {
	return func(s *TraceOptions) {
		s.Attributes = append(s.Attributes, attribute.String(key, value))
	}
}

// Span is returned by Start for callers that want to record errors on the span.
type Span struct {
	Ctx    context.Context
	otSpan trace.Span
}

func Start(ctx context.Context, name string, setOptions ...Options) Span {
	options := &TraceOptions{}
	for _, opt := range setOptions {
		opt(options)
	}

	spanCtx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(options.Attributes...))

	return Span{Ctx: spanCtx, otSpan: span}
}

func (s Span) SetTag(key, value string) {
	s.otSpan.SetAttributes(attribute.String(key, value))
}

func (s Span) RecordError(err error) {
	if err == nil {
		return
	}

	s.otSpan.RecordError(err)
	s.otSpan.SetStatus(codes.Error, err.Error())
}

func (s Span) Finish() {
	s.otSpan.End()
}

// StartTracing starts a new span with the given name and returns a context
// carrying the span and a child stat, plus a function that finishes both.
func StartTracing(ctx context.Context, name string, setOptions ...Options) (context.Context, *gocore.Stat, func()) {
	options := &TraceOptions{}
	for _, opt := range setOptions {
		opt(options)
	}

	spanCtx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(options.Attributes...))

	parent, ok := spanCtx.Value(statsKey{}).(*gocore.Stat)
	if !ok {
		parent = defaultStat
	}

	if options.ParentStat != nil {
		parent = options.ParentStat
	}

	stat := parent.NewStat(name, true)
	start := time.Now()
	statCtx := context.WithValue(spanCtx, statsKey{}, stat)

	if options.Logger != nil && options.LogMessage != "" {
		options.Logger.Debugf(options.LogMessage, options.LogArgs...)
	}

	return statCtx, stat, func() {
		span.End()
		stat.AddTime(start)

		if options.Histogram != nil {
			options.Histogram.Observe(time.Since(start).Seconds())
		}

		if options.Counter != nil {
			options.Counter.Inc()
		}

		if options.Logger != nil && options.LogMessage != "" {
			done := fmt.Sprintf(" DONE in %s", time.Since(start))
			options.Logger.Debugf(options.LogMessage+done, options.LogArgs...)
		}
	}
}
