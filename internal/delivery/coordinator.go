// Package delivery доставляет готовый payload: локально (рендер в файл) и/или
// в review-сервис. Направления независимы, итог всегда содержит оба.
package delivery

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"procedure-review/internal/metrics"
	"procedure-review/internal/render"
	"procedure-review/shared/models"
)

// AssetSources сопоставляет ID ассета с путём к исходному файлу.
// Нужен только в режиме extract для копирования файлов.
type AssetSources map[string]string

// SourcesOf собирает AssetSources из разрешённой процедуры.
func SourcesOf(resolved *models.ResolvedProcedure) AssetSources {
	sources := make(AssetSources)
	if resolved == nil {
		return sources
	}
	for _, step := range resolved.Steps {
		for _, asset := range step.Assets {
			sources[asset.ID] = asset.SourcePath
		}
	}
	return sources
}

// Config описывает запрошенные направления доставки.
type Config struct {
	OutputDir string
	// Local - запрошена ли локальная запись.
	Local bool
}

type state int

const (
	stateStart state = iota
	stateCopyAssets
	stateLocalWrite
	stateRemotePost
	stateDone
)

// Coordinator выполняет доставку как автомат
// Start -> CopyAssets? -> LocalWrite? -> RemotePost? -> Done.
// Ошибка одного направления не отменяет другое. CopyAssets выполняется в режиме
// extract для любого направления: оба сохраняют HTML, ссылающийся на procedure_assets.
type Coordinator struct {
	cfg      Config
	renderer render.Renderer
	remote   *ReviewClient
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewCoordinator создаёт координатор. remote == nil означает, что удалённая доставка не запрошена.
func NewCoordinator(cfg Config, renderer render.Renderer, remote *ReviewClient, logger *zap.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, renderer: renderer, remote: remote, logger: logger, metrics: m}
}

// Deliver никогда не паникует и не возвращает ошибку: всё, что случилось, есть в DeliveryOutcome.
func (c *Coordinator) Deliver(ctx context.Context, p *models.ReviewPayload, sources AssetSources) models.DeliveryOutcome {
	outcome := models.NewDeliveryOutcome()
	dest := DestinationPath(c.cfg.OutputDir, p)
	log := c.logger.With(
		zap.String("procedure", p.ProcedureName),
		zap.String("mode", string(p.Mode)),
		zap.String("destination", dest),
	)

	for st := stateStart; st != stateDone; {
		switch st {
		case stateStart:
			st = stateLocalWrite
			if p.Mode == models.ModeExtract && (c.cfg.Local || c.remote != nil) {
				st = stateCopyAssets
			}
		case stateCopyAssets:
			st = stateLocalWrite
			if err := c.copyAssets(p, sources); err != nil {
				log.Error("Failed to copy procedure assets", zap.Error(err))
				outcome = c.failRequested(dest, err)
				st = stateDone
			}
		case stateLocalWrite:
			if c.cfg.Local {
				outcome.Local = c.writeLocal(ctx, p, dest, log)
			}
			st = stateRemotePost
		case stateRemotePost:
			if c.remote != nil {
				outcome.Remote = c.postRemote(ctx, p, dest, log)
			}
			st = stateDone
		}
	}

	c.metrics.ObserveDelivery(outcome)
	log.Info("Delivery finished",
		zap.String("local", string(outcome.Local.Status)),
		zap.String("remote", string(outcome.Remote.Status)),
	)
	return outcome
}

// failRequested помечает все запрошенные направления как write-ошибку:
// без ассетов документ extract неполон, куда бы он ни был сохранён.
func (c *Coordinator) failRequested(dest string, err error) models.DeliveryOutcome {
	outcome := models.NewDeliveryOutcome()
	if c.cfg.Local {
		outcome.Local = models.Failed(localError(models.FailureWrite, dest, err))
	}
	if c.remote != nil {
		outcome.Remote = models.Failed(&models.DeliveryError{Sink: models.SinkRemote, Kind: models.FailureWrite, Path: dest, Err: err})
	}
	return outcome
}

func (c *Coordinator) writeLocal(ctx context.Context, p *models.ReviewPayload, dest string, log *zap.Logger) models.SinkOutcome {
	doc, err := c.renderer.Render(ctx, p, p.Mode.Format())
	if err != nil {
		log.Error("Failed to render document", zap.Error(err))
		return models.Failed(localError(models.FailureRender, dest, err))
	}

	if err := writeFileAtomic(dest, doc); err != nil {
		log.Error("Failed to write document", zap.Error(err))
		return models.Failed(localError(models.FailureWrite, dest, err))
	}
	log.Info("Document written", zap.Int("size_bytes", len(doc)))
	return models.Succeeded(dest)
}

// copyAssets кладёт исходные файлы в <output>/procedure_assets/<ID><ext>.
func (c *Coordinator) copyAssets(p *models.ReviewPayload, sources AssetSources) error {
	outputDir := c.cfg.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	for _, step := range p.Steps {
		for _, asset := range step.Assets {
			if asset.File == "" {
				continue
			}
			src, ok := sources[asset.ID]
			if !ok || src == "" {
				return fmt.Errorf("no source file known for asset %s", asset.ID)
			}
			dst := filepath.Join(outputDir, filepath.FromSlash(asset.File))
			if err := copyFileAtomic(src, dst); err != nil {
				return fmt.Errorf("asset %s: %w", asset.ID, err)
			}
		}
	}
	return nil
}

func (c *Coordinator) postRemote(ctx context.Context, p *models.ReviewPayload, dest string, log *zap.Logger) models.SinkOutcome {
	body, err := c.remote.Post(ctx, p)
	if err != nil {
		return models.Failed(err)
	}
	// Ответ сервиса сохраняется по тому же пути, что и локальный документ.
	if err := writeFileAtomic(dest, body); err != nil {
		log.Error("Failed to persist review response", zap.Error(err))
		return models.Failed(&models.DeliveryError{Sink: models.SinkRemote, Kind: models.FailureWrite, Path: dest, Err: err})
	}
	log.Info("Review response saved", zap.Int("size_bytes", len(body)))
	return models.Succeeded(dest)
}

func localError(kind models.FailureKind, path string, err error) error {
	return &models.DeliveryError{Sink: models.SinkLocal, Kind: kind, Path: path, Err: err}
}
