// Package pipeline связывает стадии одного запуска: сборка процедуры,
// генерация payload, доставка, затем уведомление и запись в журнал.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"procedure-review/internal/delivery"
	"procedure-review/internal/metrics"
	"procedure-review/shared/models"
)

// Stage - стадия пайплайна, на которой произошла ошибка.
type Stage string

const (
	StageLoad     Stage = "load"
	StageAssemble Stage = "assemble"
	StageGenerate Stage = "generate"
	StageDeliver  Stage = "deliver"
)

// StageError оборачивает ошибку стадии.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ProcedureAssembler разрешает все ссылки процедуры.
type ProcedureAssembler interface {
	Assemble(ctx context.Context, proc *models.Procedure) (*models.ResolvedProcedure, error)
}

// PayloadGenerator строит payload из разрешённой процедуры.
type PayloadGenerator interface {
	Generate(resolved *models.ResolvedProcedure, mode models.Mode) *models.ReviewPayload
}

// Deliverer доставляет payload во все запрошенные направления.
type Deliverer interface {
	Deliver(ctx context.Context, p *models.ReviewPayload, sources delivery.AssetSources) models.DeliveryOutcome
}

// Notifier публикует итог запуска.
type Notifier interface {
	Notify(ctx context.Context, n models.RunNotification) error
}

// Recorder сохраняет итог запуска в журнал.
type Recorder interface {
	Record(ctx context.Context, n models.RunNotification) error
}

// Loader загружает вход запуска. Ошибка загрузки - стадия load.
type Loader interface {
	Name() string
	Load() (*models.Procedure, *models.ResolvedProcedure, error)
}

// Request - вход одного запуска: процедура, уже разрешённая процедура либо
// Loader, который вернёт одну из них.
type Request struct {
	Procedure *models.Procedure
	Resolved  *models.ResolvedProcedure
	Loader    Loader
	Mode      models.Mode
}

// Result - то, что удалось получить до остановки пайплайна.
type Result struct {
	RunID    string
	Resolved *models.ResolvedProcedure
	Payload  *models.ReviewPayload
	Outcome  models.DeliveryOutcome
}

// Pipeline хранит только зависимости; состояние запуска живёт в Run.
type Pipeline struct {
	assembler ProcedureAssembler
	generator PayloadGenerator
	deliverer Deliverer
	devlog    *delivery.DevLogger
	notifier  Notifier
	recorder  Recorder
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Option настраивает необязательные зависимости.
type Option func(*Pipeline)

// WithNotifier включает публикацию итога запуска.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithRecorder включает запись итога запуска в журнал.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func WithDevLogger(d *delivery.DevLogger) Option {
	return func(p *Pipeline) { p.devlog = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(assembler ProcedureAssembler, generator PayloadGenerator, deliverer Deliverer, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		assembler: assembler,
		generator: generator,
		deliverer: deliverer,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run выполняет один запуск. Ошибка - *StageError; Result возвращается всегда
// и содержит всё, что было получено до ошибки.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Outcome: models.NewDeliveryOutcome()}
	started := p.now()
	mode := req.Mode
	if mode == "" {
		mode = models.ModeFull
	}

	name := ""
	switch {
	case req.Resolved != nil:
		name = req.Resolved.Name
	case req.Procedure != nil:
		name = req.Procedure.Name
	case req.Loader != nil:
		name = req.Loader.Name()
	}
	log := p.logger.With(zap.String("run_id", res.RunID), zap.String("procedure", name), zap.String("mode", string(mode)))
	log.Info("Pipeline run started")

	err := p.run(ctx, req, mode, res, log)

	p.finish(ctx, res, name, mode, started, err, log)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, req Request, mode models.Mode, res *Result, log *zap.Logger) error {
	proc, resolved := req.Procedure, req.Resolved
	if proc == nil && resolved == nil && req.Loader != nil {
		var err error
		proc, resolved, err = req.Loader.Load()
		if err != nil {
			return &StageError{Stage: StageLoad, Err: err}
		}
	}
	if resolved == nil {
		if proc == nil {
			return &StageError{Stage: StageLoad, Err: models.ErrNoProcedureInput}
		}
		var err error
		resolved, err = p.assembler.Assemble(ctx, proc)
		if err != nil {
			return &StageError{Stage: StageAssemble, Err: err}
		}
	} else {
		log.Info("Using pre-resolved procedure, asset resolution skipped")
	}
	res.Resolved = resolved
	p.devlog.LogResolved(resolved)

	payload := p.generator.Generate(resolved, mode)
	if err := payload.Validate(); err != nil {
		return &StageError{Stage: StageGenerate, Err: err}
	}
	res.Payload = payload
	p.devlog.LogPayload(payload)

	res.Outcome = p.deliverer.Deliver(ctx, payload, delivery.SourcesOf(resolved))
	if err := res.Outcome.Err(); err != nil {
		return &StageError{Stage: StageDeliver, Err: err}
	}
	return nil
}

// finish публикует уведомление и пишет журнал. Их ошибки только логируются.
func (p *Pipeline) finish(ctx context.Context, res *Result, name string, mode models.Mode, started time.Time, runErr error, log *zap.Logger) {
	if res.Resolved != nil && res.Resolved.Name != "" {
		name = res.Resolved.Name
	}
	n := models.RunNotification{
		RunID:         res.RunID,
		ProcedureName: name,
		Mode:          mode,
		Status:        models.RunStatusSuccess,
		StartedAt:     started.UTC().Format(time.RFC3339),
		FinishedAt:    p.now().UTC().Format(time.RFC3339),
	}
	if res.Payload != nil {
		outcome := res.Outcome
		n.Outcome = &outcome
	}
	if runErr != nil {
		n.Status = models.RunStatusError
		n.ErrorDetails = runErr.Error()
		var se *StageError
		if errors.As(runErr, &se) {
			n.FailedStage = string(se.Stage)
		}
		log.Error("Pipeline run failed", zap.String("stage", n.FailedStage), zap.Error(runErr))
	} else {
		log.Info("Pipeline run finished")
	}
	p.metrics.ObserveRun(n.Status)

	// Уведомление и журнал не должны зависеть от отмены основного контекста.
	ctx = context.WithoutCancel(ctx)
	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, n); err != nil {
			log.Warn("Failed to publish run notification", zap.Error(err))
		}
	}
	if p.recorder != nil {
		if err := p.recorder.Record(ctx, n); err != nil {
			log.Warn("Failed to record run in journal", zap.Error(err))
		}
	}
}
