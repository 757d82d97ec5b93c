package main

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/scribe/internal/apiclient"
	"github.com/GriffinCanCode/scribe/internal/chunker"
	"github.com/GriffinCanCode/scribe/internal/config"
	"github.com/GriffinCanCode/scribe/internal/llm"
	"github.com/GriffinCanCode/scribe/internal/metrics"
	"github.com/GriffinCanCode/scribe/internal/resilience"
	"github.com/GriffinCanCode/scribe/internal/stt"
	"github.com/GriffinCanCode/scribe/internal/summarize"
)

type deps struct {
	stt        *stt.Client
	summarizer *summarize.Summarizer
}

// wire builds both external boundaries, each behind its own breaker.
func wire(cfg *config.Config, m *metrics.Metrics, h *healthReporter) (*deps, error) {
	tok, err := chunker.NewTiktoken(cfg.TokenEncoding)
	if err != nil {
		return nil, err
	}

	sttAPI := newAPIClient(cfg, resilience.TranscriptionConfig(), m, h)
	sttClient, err := stt.New(sttAPI, tok, stt.Options{
		Model:           cfg.STTModel,
		Prompt:          cfg.STTPrompt,
		Language:        cfg.STTLanguage,
		Translate:       cfg.STTTranslate,
		MaxPromptTokens: cfg.STTMaxPromptTokens,
		MaxPayload:      cfg.MaxPayloadBytes,
	})
	if err != nil {
		return nil, err
	}

	budget, _ := llm.ContextSize(cfg.SummaryModel)
	llmAPI := newAPIClient(cfg, resilience.CompletionConfig(), m, h)
	sum := summarize.NewSummarizer(llm.New(llmAPI), tok, summarize.Options{
		Model:  cfg.SummaryModel,
		System: cfg.SummarySystemPrompt,
		Budget: budget,
	}, m)

	return &deps{stt: sttClient, summarizer: sum}, nil
}

func newAPIClient(cfg *config.Config, bc resilience.Config, m *metrics.Metrics, h *healthReporter) *apiclient.Client {
	c := apiclient.New(apiclient.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Breaker: bc,
	})
	onMetrics := m.BreakerHook(bc.Name)
	h.track(bc.Name)
	c.Breaker().WithHook(func(from, to resilience.State) {
		onMetrics(from, to)
		h.breakerChanged(bc.Name, to)
	})
	return c
}

// healthReporter publishes breaker state through the standard gRPC health service.
// The overall service ("") is SERVING until shutdown; each boundary is reported
// NOT_SERVING while its breaker is open.
type healthReporter struct {
	srv *health.Server
}

func newHealth() *healthReporter {
	return &healthReporter{srv: health.NewServer()}
}

func (h *healthReporter) register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

func (h *healthReporter) track(name string) {
	h.srv.SetServingStatus(serviceName(name), healthpb.HealthCheckResponse_SERVING)
}

func (h *healthReporter) breakerChanged(name string, to resilience.State) {
	status := healthpb.HealthCheckResponse_SERVING
	if to == resilience.Open {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	slog.Info("health status changed", "service", serviceName(name), "status", status.String())
	h.srv.SetServingStatus(serviceName(name), status)
}

func (h *healthReporter) shutdown() {
	h.srv.Shutdown()
}

func serviceName(boundary string) string {
	return "scribe." + boundary
}
