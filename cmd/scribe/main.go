// Command scribe records, transcribes and summarizes speech.
//
//	scribe listen [-summarize]     live microphone session with HTTP/WebSocket surface
//	scribe transcribe <file>       transcribe a long recording offline
//	scribe summarize <file|->      summarize a text file or stdin
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"github.com/GriffinCanCode/scribe/internal/artifact"
	"github.com/GriffinCanCode/scribe/internal/audio"
	"github.com/GriffinCanCode/scribe/internal/config"
	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
	"github.com/GriffinCanCode/scribe/internal/metrics"
	"github.com/GriffinCanCode/scribe/internal/server"
	"github.com/GriffinCanCode/scribe/internal/session"
	"github.com/GriffinCanCode/scribe/internal/splitter"
	"github.com/GriffinCanCode/scribe/internal/trace"
	"github.com/GriffinCanCode/scribe/internal/transcript"
)

const usage = `usage: scribe <command> [flags]

commands:
  listen [-summarize]   record from the microphone until interrupted
  transcribe <file>     transcribe a recording of any length
  summarize <file|->    summarize a text file, or stdin with -
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "listen":
		err = runListen(args)
	case "transcribe":
		err = runTranscribe(args)
	case "summarize":
		err = runSummarize(args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("scribe failed", "error", err)
		os.Exit(1)
	}
}

// setup parses flags, loads configuration and installs the default logger.
func setup(fs *flag.FlagSet, args []string) (*config.Config, error) {
	configPath := fs.String("config", "", "YAML config file (overrides SCRIBE_CONFIG)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *configPath != "" {
		_ = os.Setenv("SCRIBE_CONFIG", *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return cfg, nil
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func runListen(args []string) error {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	withSummary := fs.Bool("summarize", false, "print a summary of the transcript on exit")
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}

	reg := newRegistry()
	m := metrics.New(reg)
	health := newHealth()

	deps, err := wire(cfg, m, health)
	if err != nil {
		return err
	}

	src := audio.NewPortAudioSource(cfg.InputDevice, cfg.FramesPerBuffer, cfg.FrameBuffer)
	src.SetDropHook(m.FrameDropped)

	store := transcript.NewStore(64)
	sess := session.New(src, deps.stt, artifact.NewFileSink(cfg.OutputDir), store, session.Config{
		Segmenter: session.SegmenterConfig{
			Threshold:     cfg.VADThreshold,
			WindowSeconds: cfg.VADWindowSeconds,
			FillRatio:     cfg.EmitFillRatio,
			Interval:      cfg.EmitInterval,
		},
		QueueSize:   cfg.QueueSize,
		QueuePolicy: cfg.QueuePolicy,
	}, m)

	srv := server.New(store, sess, deps.summarizer, reg)
	defer srv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sess.Start(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     srv.Handler(),
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("http server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	health.register(grpcServer)
	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			slog.Error("grpc listen failed", "addr", cfg.GRPCAddr, "error", err)
			return
		}
		slog.Info("grpc health server starting", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	}()

	slog.Info("listening, press Ctrl-C to stop")
	<-ctx.Done()
	slog.Info("shutting down...")

	health.shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	stopCtx, span := trace.StartSpan(context.Background(), "listen.stop")
	path, err := sess.Stop(stopCtx)
	span.End()
	switch {
	case err == nil && path != "":
		slog.Info("session audio saved", "path", path)
	case err != nil && !apperrors.IsCode(err, apperrors.CodeEmptyBuffer):
		slog.Error("saving session audio failed", "error", err)
	}

	text := store.Text()
	fmt.Print(text)

	if *withSummary && text != "" {
		res, err := deps.summarizer.Summarize(stopCtx, text)
		if err != nil {
			return err
		}
		fmt.Printf("\n--- summary ---\n%s\n", res.Summary)
	}
	return nil
}

func runTranscribe(args []string) error {
	fs := flag.NewFlagSet("transcribe", flag.ExitOnError)
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return apperrors.New(apperrors.CodeInvalidArgument, "transcribe takes exactly one file")
	}

	m := metrics.New(prometheus.NewRegistry())
	deps, err := wire(cfg, m, newHealth())
	if err != nil {
		return err
	}

	sp := splitter.New(splitter.FFmpeg{}, deps.stt, splitter.Options{
		MaxPayload:  cfg.MaxPayloadBytes,
		BitrateKbps: cfg.SplitBitrateKbps,
		Format:      cfg.SplitFormat,
		Concurrency: cfg.SplitConcurrency,
	}, m)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	text, err := sp.Transcribe(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func runSummarize(args []string) error {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	cfg, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return apperrors.New(apperrors.CodeInvalidArgument, "summarize takes exactly one file, or - for stdin")
	}

	text, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.NewRegistry())
	deps, err := wire(cfg, m, newHealth())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := deps.summarizer.Summarize(ctx, text)
	if err != nil {
		return err
	}
	if res.Failures > 0 {
		slog.Warn("some chunks were skipped", "failures", res.Failures, "chunks", res.Chunks)
	}
	fmt.Println(res.Summary)
	return nil
}

func readInput(name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.CodeInvalidArgument, "failed to read %s", name)
	}
	if !utf8.Valid(data) {
		return "", apperrors.Newf(apperrors.CodeInvalidArgument, "%s is not valid UTF-8", name)
	}
	return string(data), nil
}
