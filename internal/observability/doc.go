// Package observability provides monitoring and debugging capabilities for
// the content pipeline through metrics, structured logging, and distributed
// tracing.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Embedding provider latency and token usage (C1)
//   - Vector store search latency and row counts (C2)
//   - Semantic cache hit/miss outcomes (C3)
//   - Rate limit admission decisions and degraded state (C4)
//   - Router candidate selections (C5)
//   - Model manager state machine stage duration and outcomes (C6)
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	start := time.Now()
//	// ... call embedding provider ...
//	metrics.RecordEmbeddingRequest("openai", "text-embedding-3-small", "success",
//	    time.Since(start).Seconds(), inputTokens)
//
//	start = time.Now()
//	// ... query vector store ...
//	metrics.RecordVectorSearch("pgvector", "hybrid", time.Since(start).Seconds(), len(results))
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	ctx = observability.AddRequestID(ctx, requestID)
//
//	logger.Info(ctx, "model manager call completed",
//	    "provider", "anthropic",
//	    "model", requestedModel,
//	    "cache_hit", false,
//	)
//
//	logger.Error(ctx, "embedding request failed",
//	    "error", err,
//	    "provider", "openai",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track the model manager's
// [CacheLookup]->[Select]->[Admit]->[Call]->[Record] state machine as a
// single span tree, exported via OTLP/gRPC to a collector.
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "loreengine",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317",
//	    SamplingRate:   0.1,
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "modelmanager.complete")
//	defer span.End()
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "sess-456")
//
//	logger.Info(ctx, "processing") // Includes request_id, session_id
//
//	ctx, span := tracer.Start(ctx, "operation")
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
