// Command smartdocd runs the health assistant: the orchestrator, the
// three specialized pipelines, and the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"

	"github.com/smartdoc-labs/smartdoc/pkg/agents"
	"github.com/smartdoc-labs/smartdoc/pkg/config"
	"github.com/smartdoc-labs/smartdoc/pkg/llm"
	"github.com/smartdoc-labs/smartdoc/pkg/notify"
	"github.com/smartdoc-labs/smartdoc/pkg/pipeline"
	"github.com/smartdoc-labs/smartdoc/pkg/pipeline/observability"
	"github.com/smartdoc-labs/smartdoc/pkg/server"
	"github.com/smartdoc-labs/smartdoc/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "smartdocd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(settings)
	slog.SetDefault(logger)

	st, err := store.NewSQLiteStore(settings.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier, err := newNotifier(ctx, settings, logger)
	if err != nil {
		return err
	}

	deps := agents.Deps{
		LLM: llm.NewAnthropicClient(
			llm.WithModel(anthropic.Model(settings.AnthropicModel)),
			llm.WithMaxTokens(int64(settings.ModelMaxTokens)),
			llm.WithLogger(logger)),
		Store:    st,
		Notifier: notifier,
		Clock:    clockwork.NewRealClock(),
		Logger:   logger,
		RunOptions: []pipeline.RunOption{
			pipeline.WithMetrics(observability.NewMetricsRecorder()),
			pipeline.WithTracing(observability.NewSpanManager()),
		},
	}

	invoker, err := newInvoker(settings, deps)
	if err != nil {
		return err
	}

	orchestrator, err := agents.NewOrchestrator(deps, invoker)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	httpSrv := &http.Server{
		Addr:    settings.ListenAddr,
		Handler: server.New(orchestrator, invoker, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", settings.ListenAddr, "invoker", settings.InvokerMode)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	return nil
}

// newLogger builds the slog logger from settings. The text format uses
// tint for colored development output; json is for production.
func newLogger(settings config.Settings) *slog.Logger {
	level := parseLevel(settings.LogLevel)

	if strings.EqualFold(settings.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newNotifier returns the SNS gateway when SMS is enabled, otherwise a
// recording mock so emergency flows still complete in development.
func newNotifier(ctx context.Context, settings config.Settings, logger *slog.Logger) (notify.Notifier, error) {
	if !settings.SMSEnabled {
		logger.Warn("SMS disabled, emergency alerts will not be delivered")
		return &notify.Mock{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(settings.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return notify.NewSNSNotifier(awsCfg), nil
}

// newInvoker wires the pipeline dispatch: in-process for "local",
// JSON/HTTP for "http".
func newInvoker(settings config.Settings, deps agents.Deps) (agents.Invoker, error) {
	switch settings.InvokerMode {
	case "http":
		return agents.NewHTTPInvoker(settings.AgentsBaseURL, nil), nil
	case "local":
		emergency, err := agents.NewEmergencyAgent(deps)
		if err != nil {
			return nil, fmt.Errorf("build emergency pipeline: %w", err)
		}
		medication, err := agents.NewMedicationAgent(deps)
		if err != nil {
			return nil, fmt.Errorf("build medication pipeline: %w", err)
		}
		symptom, err := agents.NewSymptomAgent(deps)
		if err != nil {
			return nil, fmt.Errorf("build symptom pipeline: %w", err)
		}

		return agents.NewLocalInvoker().
			Register(agents.PipelineEmergency, emergency).
			Register(agents.PipelineMedication, medication).
			Register(agents.PipelineSymptom, symptom), nil
	default:
		return nil, fmt.Errorf("unknown invoker mode: %q", settings.InvokerMode)
	}
}
