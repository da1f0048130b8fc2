package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mcpsrv "github.com/longevitycoach/strunz-mcp"
	"github.com/longevitycoach/strunz-mcp/index"
	"github.com/longevitycoach/strunz-mcp/internal/knowledgetools"
	"github.com/longevitycoach/strunz-mcp/oauth"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const serviceName = "strunz-mcp"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	shutdownTracing, err := initTracing()
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing()

	corpusDir := getEnv("CORPUS_DIR", "")
	idx := index.Get(corpusDir)
	go func() {
		idx.Preload()
		if !idx.Status().Ready {
			logger.Warn("knowledge index unavailable; search tools will report errors", "corpus_dir", corpusDir)
		}
	}()

	registry := mcpsrv.NewRegistry()
	knowledgetools.Register(registry, idx)

	toolTimeout := getDurationEnv("TOOL_TIMEOUT_SECONDS", 30*time.Second)
	dispatcher := mcpsrv.NewDispatcher(registry, toolTimeout, logger)
	if capacity, rate, ok := getTokenBucketEnv(); ok {
		dispatcher.RateLimiter = mcpsrv.NewTokenBucket(capacity, rate)
	}

	idleTimeout := getDurationEnv("SESSION_IDLE_SECONDS", 600*time.Second)
	sessions := mcpsrv.NewSessionManager(idleTimeout, 5*time.Second, logger)
	defer sessions.Stop()

	transport := getEnv("TRANSPORT", "stdio")

	switch transport {
	case "stdio":
		runStdio(dispatcher, sessions, logger)
	case "http":
		runHTTP(dispatcher, sessions, idx, logger)
	default:
		logger.Error("unknown TRANSPORT value", "transport", transport)
		os.Exit(1)
	}
}

func runStdio(d *mcpsrv.Dispatcher, sessions *mcpsrv.SessionManager, logger *slog.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t := mcpsrv.NewStdioTransport(d, sessions, os.Stdin, os.Stdout, logger)
	if err := t.Run(ctx); err != nil {
		logger.Error("stdio transport exited with error", "error", err)
		os.Exit(1)
	}
}

func runHTTP(d *mcpsrv.Dispatcher, sessions *mcpsrv.SessionManager, idx index.KnowledgeIndex, logger *slog.Logger) {
	host := getEnv("HOST", "0.0.0.0")
	port := getEnv("PORT", "8080")
	publicURL := getEnv("PUBLIC_URL", "http://"+host+":"+port)
	skipOAuth := getBoolEnv("SKIP_OAUTH", false)
	autoApproveClients := splitCSV(getEnv("AUTO_APPROVE_CLIENTS", ""))
	autoApproveRedirects := splitCSV(getEnv("AUTO_APPROVE_REDIRECTS", ""))
	perSessionConcurrency := getIntEnv("PER_SESSION_CONCURRENCY", 8)

	cors := mcpsrv.NewCORSPolicy(getEnv("ALLOWED_ORIGINS", ""))
	httpTransport := mcpsrv.NewHTTPTransport(d, sessions, cors, perSessionConcurrency, 0, logger)

	provider := oauth.NewProvider(publicURL, autoApproveClients, autoApproveRedirects, skipOAuth, logger)
	defer provider.Stop()

	health := &mcpsrv.HealthHandler{
		Version:         "1.0.0",
		ProtocolVersion: mcpsrv.ProtocolVersionLatest,
		StartedAt:       time.Now(),
		IndexStatus: func() mcpsrv.IndexStatus {
			st := idx.Status()
			return mcpsrv.IndexStatus{Ready: st.Ready, DocumentCount: st.DocumentCount}
		},
		OAuthEnabled:   !skipOAuth,
		OAuthEndpoints: provider.Endpoints(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sse", httpTransport.HandleSSE)
	mux.HandleFunc("/messages", httpTransport.HandleMessages)
	mux.HandleFunc("/", health.HandleRoot)
	mux.HandleFunc("/railway-health", health.HandleLiveness)

	mux.HandleFunc("/.well-known/oauth-authorization-server", provider.HandleAuthorizationServerMetadata)
	mux.HandleFunc("/.well-known/oauth-protected-resource", provider.HandleProtectedResourceMetadata)
	mux.HandleFunc("/oauth/register", provider.HandleRegister)
	mux.HandleFunc("/oauth/authorize", provider.HandleAuthorize)
	mux.HandleFunc("/oauth/token", provider.HandleToken)
	mux.HandleFunc("/oauth/userinfo", provider.HandleUserinfo)
	mux.HandleFunc("/api/organizations/", provider.HandleStartAuth)

	server := &http.Server{
		Addr:    host + ":" + port,
		Handler: mux,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down", "reason", ctx.Err())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("http transport listening", "addr", server.Addr, "public_url", publicURL, "skip_oauth", skipOAuth)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server exited with error", "error", err)
		os.Exit(1)
	}
}

// initTracing bootstraps the OTel tracer provider: an OTLP gRPC exporter
// when OTEL_EXPORTER_OTLP_ENDPOINT is set, otherwise a stdout exporter so
// spans are always visible somewhere during local runs.
func initTracing() (func(), error) {
	ctx := context.Background()

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	if endpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""); endpoint != "" {
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getIntEnv(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}

// getTokenBucketEnv reads RATE_LIMIT_CAPACITY/RATE_LIMIT_REFILL_PER_SECOND;
// the limiter is only wired when a capacity is explicitly configured, since
// an unset value means "rate limiting disabled" rather than "use a default".
func getTokenBucketEnv() (capacity, refillRate float64, ok bool) {
	raw := os.Getenv("RATE_LIMIT_CAPACITY")
	if raw == "" {
		return 0, 0, false
	}
	capValue, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, 0, false
	}
	rate := 1.0
	if r := os.Getenv("RATE_LIMIT_REFILL_PER_SECOND"); r != "" {
		if parsed, err := strconv.ParseFloat(r, 64); err == nil {
			rate = parsed
		}
	}
	return capValue, rate, true
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
