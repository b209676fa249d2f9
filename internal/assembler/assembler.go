// Package assembler собирает процедуру: разрешает все ссылки всех шагов
// ограниченным пулом воркеров и возвращает полностью разрешённую процедуру.
package assembler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"procedure-review/internal/metrics"
	"procedure-review/shared/models"
)

// DefaultWorkers - размер пула, если не задан.
const DefaultWorkers = 4

// AssetResolver разрешает одну ссылку шага.
type AssetResolver interface {
	Resolve(ctx context.Context, ref models.AssetReference, rc models.ProcedureContext) (*models.ResolvedAsset, error)
}

// Assembler не хранит состояния между вызовами Assemble.
type Assembler struct {
	resolver AssetResolver
	workers  int
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New создаёт сборщик. workers < 1 заменяется на DefaultWorkers.
func New(resolver AssetResolver, workers int, logger *zap.Logger, m *metrics.Metrics) *Assembler {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{resolver: resolver, workers: workers, logger: logger, metrics: m}
}

type job struct {
	step  int
	asset int
	ref   models.AssetReference
	rc    models.ProcedureContext
}

// Assemble разрешает все ссылки процедуры. Порядок шагов и ассетов в результате
// совпадает с исходным независимо от порядка завершения воркеров. Первая ошибка
// отменяет остальные задачи и возвращается как *models.AssemblyError; частичный
// результат не возвращается.
func (a *Assembler) Assemble(ctx context.Context, proc *models.Procedure) (*models.ResolvedProcedure, error) {
	if proc == nil || len(proc.Steps) == 0 {
		return nil, models.ErrEmptyProcedure
	}

	start := time.Now()
	log := a.logger.With(zap.String("procedure", proc.Name))

	// Арена заранее нужного размера: каждый воркер пишет только в свою ячейку.
	arena := make([][]models.ResolvedAsset, len(proc.Steps))
	jobs := make([]job, 0, proc.ReferenceCount())
	for i, step := range proc.Steps {
		ordinal := stepOrdinal(step, i)
		arena[i] = make([]models.ResolvedAsset, len(step.Assets))
		for j, ref := range step.Assets {
			jobs = append(jobs, job{
				step:  i,
				asset: j,
				ref:   ref,
				rc: models.ProcedureContext{
					ProcedureName: proc.Name,
					BaseDir:       proc.BaseDir,
					StepOrdinal:   ordinal,
					AssetIndex:    j,
				},
			})
		}
	}
	log.Info("Assembling procedure", zap.Int("steps", len(proc.Steps)), zap.Int("references", len(jobs)), zap.Int("workers", a.workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, jb := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			asset, err := a.resolver.Resolve(gctx, jb.ref, jb.rc)
			if err != nil {
				if isContextErr(err) && gctx.Err() != nil {
					return err
				}
				return &models.AssemblyError{
					StepOrdinal: jb.rc.StepOrdinal,
					AssetIndex:  jb.asset,
					Reference:   jb.ref,
					Err:         err,
				}
			}
			arena[jb.step][jb.asset] = *asset
			return nil
		})
	}

	err := g.Wait()
	a.metrics.ObserveAssembly(time.Since(start))
	if err != nil {
		log.Error("Procedure assembly failed", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resolved := &models.ResolvedProcedure{
		Name:        proc.Name,
		Title:       proc.Title,
		Description: proc.Description,
		Steps:       make([]models.ResolvedStep, len(proc.Steps)),
	}
	for i, step := range proc.Steps {
		resolved.Steps[i] = models.ResolvedStep{
			Ordinal:     stepOrdinal(step, i),
			Title:       step.Title,
			Instruction: step.Instruction,
			Assets:      arena[i],
		}
	}
	log.Info("Procedure assembled", zap.Int("assets", resolved.AssetCount()), zap.Duration("took", time.Since(start)))
	return resolved, nil
}

func stepOrdinal(step models.Step, index int) int {
	if step.Ordinal > 0 {
		return step.Ordinal
	}
	return index + 1
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
