package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/longkey1/gchat/internal/anthropic"
	"github.com/longkey1/gchat/internal/conversation"
	"github.com/longkey1/gchat/internal/gchat"
	"github.com/longkey1/gchat/internal/gchat/config"
	"github.com/longkey1/gchat/internal/gemini"
	"github.com/longkey1/gchat/internal/openai"
	"github.com/longkey1/gchat/internal/telemetry"
	"github.com/longkey1/gchat/internal/transport"
	"github.com/longkey1/gchat/internal/version"
)

type provider interface {
	gchat.Streamer
	gchat.ModelLister
}

// newProvider creates a new provider instance based on the configured model
func newProvider(cfg *config.Config, logger *log.Logger) (provider, error) {
	name, err := cfg.GetProvider()
	if err != nil {
		return nil, err
	}

	client := transport.NewClient(cfg.MaxRetries, logger)
	switch name {
	case gemini.ProviderName:
		return gemini.NewProvider(cfg, gemini.WithHTTPClient(client), gemini.WithLogger(logger, verbose)), nil
	case openai.ProviderName:
		return openai.NewProvider(cfg, openai.WithHTTPClient(client), openai.WithLogger(logger, verbose)), nil
	case anthropic.ProviderName:
		return anthropic.NewProvider(cfg, anthropic.WithHTTPClient(client), anthropic.WithLogger(logger, verbose)), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// assistantName is the label shown in front of replies
func assistantName(cfg *config.Config) string {
	name, _ := cfg.GetProvider()
	switch name {
	case openai.ProviderName:
		return "OpenAI"
	case anthropic.ProviderName:
		return "Claude"
	default:
		return "Gemini"
	}
}

// newUpdater wires a fresh conversation to the configured provider. The
// returned shutdown func waits for running streams and flushes traces.
func newUpdater(ctx context.Context, cfg *config.Config, logger *log.Logger) (*conversation.Updater, func(), error) {
	streamer, err := newProvider(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating provider: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.TelemetryConfig{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceVersion: version.Short(),
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up telemetry: %w", err)
	}

	updater := conversation.NewUpdater(conversation.NewStore(), streamer,
		conversation.WithLogger(logger),
		conversation.WithSingleFlight(cfg.SingleFlight),
		conversation.WithTracerProvider(tp.TracerProvider()),
	)

	shutdown := func() {
		updater.Wait()
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Printf("telemetry shutdown: %v", err)
		}
	}
	return updater, shutdown, nil
}

// setupContext returns a context cancelled by the first interrupt. A second
// interrupt exits immediately.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		select {
		case <-interrupt:
		case <-ctx.Done():
			signal.Stop(interrupt)
			return
		}
		cancel()
		<-interrupt
		fmt.Fprintln(os.Stderr, "\nForcing shutdown")
		os.Exit(130)
	}()

	return ctx, func() {
		signal.Stop(interrupt)
		cancel()
	}
}
