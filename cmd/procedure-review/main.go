package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"procedure-review/internal/assembler"
	"procedure-review/internal/config"
	"procedure-review/internal/delivery"
	"procedure-review/internal/journal"
	"procedure-review/internal/metrics"
	"procedure-review/internal/notify"
	"procedure-review/internal/payload"
	"procedure-review/internal/pipeline"
	"procedure-review/internal/procedure"
	"procedure-review/internal/render"
	"procedure-review/internal/resolver"
	"procedure-review/shared/logger"
	"procedure-review/shared/models"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	fs := flag.NewFlagSet("procedure-review", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := cfg.ApplyFlags(fs, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return exitUsage
	}
	defer func() { _ = appLogger.Sync() }()

	if err := cfg.Validate(); err != nil {
		appLogger.Error("Invalid configuration", zap.Error(err))
		fmt.Fprintf(stderr, "procedure-review: %v\n", err)
		fs.Usage()
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Input.List {
		return listProcedures(cfg.Input.ProceduresFile, stdout, stderr)
	}
	if cfg.Input.History > 0 {
		return printHistory(ctx, cfg, stdout, stderr)
	}

	m := metrics.New()
	defer func() {
		if err := m.Push(cfg.PushGatewayURL); err != nil {
			appLogger.Warn("Failed to push metrics", zap.Error(err))
		}
	}()

	p, cleanup, err := buildPipeline(cfg, appLogger, m)
	if err != nil {
		appLogger.Error("Failed to initialize pipeline", zap.Error(err))
		return exitFailed
	}
	defer cleanup()

	req := pipeline.Request{
		Loader: procedure.Source{
			ProceduresFile: cfg.Input.ProceduresFile,
			Procedure:      cfg.Input.Procedure,
			InputJSON:      cfg.Input.InputJSON,
		},
		Mode: cfg.Mode(),
	}
	res, err := p.Run(ctx, req)
	printSummary(stdout, res)
	if err != nil {
		fmt.Fprintf(stderr, "procedure-review: %v\n", err)
		return exitFailed
	}
	return exitOK
}

func buildPipeline(cfg *config.Config, appLogger *zap.Logger, m *metrics.Metrics) (*pipeline.Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	frames := resolver.NewFFmpegExtractor(cfg.Resolver.FFmpegPath, appLogger)
	res := resolver.New(resolver.Config{
		MaxAssetBytes:    cfg.Resolver.MaxAssetBytes,
		DefaultOffset:    cfg.Resolver.VideoFrameOffset,
		DefaultFrames:    1,
		DefaultSelection: models.FrameSelection(cfg.Resolver.FrameSelection),
	}, frames, appLogger.Named("resolver"), m)
	asm := assembler.New(res, cfg.Workers, appLogger.Named("assembler"), m)
	gen := payload.NewGenerator()

	renderer, err := render.NewDocument(appLogger)
	if err != nil {
		return nil, cleanup, err
	}
	var remote *delivery.ReviewClient
	if cfg.RemoteRequested() {
		remote = delivery.NewReviewClient(cfg.Endpoint(), cfg.Delivery.HTTPTimeout, nil, appLogger.Named("review_client"))
	}
	coord := delivery.NewCoordinator(delivery.Config{
		OutputDir: cfg.OutputDir(),
		Local:     cfg.LocalRequested(),
	}, renderer, remote, appLogger.Named("delivery"), m)

	opts := []pipeline.Option{pipeline.WithMetrics(m)}
	if cfg.Delivery.DevLog {
		opts = append(opts, pipeline.WithDevLogger(delivery.NewDevLogger(cfg.Delivery.DevLogDir, appLogger)))
	}
	if cfg.RabbitMQ.URL != "" {
		notifier, err := notify.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.ResultQueue, appLogger)
		if err != nil {
			// Уведомления не должны мешать запуску
			appLogger.Warn("RabbitMQ unavailable, run notifications disabled", zap.Error(err))
		} else {
			opts = append(opts, pipeline.WithNotifier(notifier))
			closers = append(closers, func() { _ = notifier.Close() })
		}
	}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			appLogger.Warn("Run journal unavailable", zap.String("path", cfg.JournalPath), zap.Error(err))
		} else {
			opts = append(opts, pipeline.WithRecorder(j))
			closers = append(closers, func() { _ = j.Close() })
		}
	}

	return pipeline.New(asm, gen, coord, appLogger.Named("pipeline"), opts...), cleanup, nil
}

func listProcedures(path string, stdout, stderr io.Writer) int {
	names, err := procedure.ListNames(path)
	if err != nil {
		fmt.Fprintf(stderr, "procedure-review: %v\n", err)
		return exitFailed
	}
	for _, name := range names {
		fmt.Fprintln(stdout, name)
	}
	return exitOK
}

func printHistory(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) int {
	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		fmt.Fprintf(stderr, "procedure-review: %v\n", err)
		return exitFailed
	}
	defer func() { _ = j.Close() }()

	runs, err := j.Recent(ctx, cfg.Input.Procedure, cfg.Input.History)
	if err != nil {
		fmt.Fprintf(stderr, "procedure-review: %v\n", err)
		return exitFailed
	}
	for _, n := range runs {
		line := fmt.Sprintf("%s  %-20s %-7s %-7s", n.FinishedAt, n.ProcedureName, n.Mode, n.Status)
		if n.FailedStage != "" {
			line += " stage=" + n.FailedStage
		}
		fmt.Fprintln(stdout, line+"  "+n.RunID)
	}
	return exitOK
}

func printSummary(w io.Writer, res *pipeline.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "run %s\n", res.RunID)
	printSink(w, models.SinkLocal, res.Outcome.Local)
	printSink(w, models.SinkRemote, res.Outcome.Remote)
}

func printSink(w io.Writer, sink models.Sink, o models.SinkOutcome) {
	switch o.Status {
	case models.SinkSucceeded:
		fmt.Fprintf(w, "  %-6s %s -> %s\n", sink, o.Status, o.Path)
	case models.SinkFailed:
		fmt.Fprintf(w, "  %-6s %s (%s): %s\n", sink, o.Status, o.Kind, o.Error)
	default:
		fmt.Fprintf(w, "  %-6s %s\n", sink, o.Status)
	}
}
