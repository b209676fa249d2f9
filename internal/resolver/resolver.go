package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"procedure-review/internal/metrics"
	"procedure-review/shared/models"
)

// defaultFrameInterval используется, когда запрошено несколько кадров без явного интервала.
const defaultFrameInterval = 1.0

// FrameExtractor извлекает один кадр видео по смещению (в секундах).
// Пустой результат без ошибки означает, что кадра на этом смещении нет.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, path string, offset float64) ([]byte, error)
}

// Config - политика разрешения ассетов.
type Config struct {
	// MaxAssetBytes - потолок размера одного изображения или кадра; 0 - без ограничения.
	MaxAssetBytes int64
	// DefaultOffset - смещение кадра, если в ссылке оно не указано.
	DefaultOffset float64
	// DefaultFrames - число кадров по умолчанию (не меньше 1).
	DefaultFrames int
	// DefaultSelection - правило выбора кадров по умолчанию.
	DefaultSelection models.FrameSelection
}

// Resolver превращает ссылку шага в самодостаточный закодированный ассет.
// Только читает файловую систему; состояния между вызовами не хранит.
type Resolver struct {
	cfg     Config
	frames  FrameExtractor
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New создает резолвер. frames может быть nil: тогда любое видео даёт ErrFrameExtractionFailed.
func New(cfg Config, frames FrameExtractor, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	if cfg.DefaultFrames < 1 {
		cfg.DefaultFrames = 1
	}
	if !cfg.DefaultSelection.IsValid() {
		cfg.DefaultSelection = models.FrameSelectionFirst
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, frames: frames, logger: logger, metrics: m}
}

// Resolve разрешает одну ссылку. Ошибки - *models.ResolveError с одним из
// сентинелов (ErrAssetNotFound, ErrAssetUnreadable, ErrAssetTooLarge,
// ErrFrameExtractionFailed, ErrInvalidAsset) либо ошибка контекста.
func (r *Resolver) Resolve(ctx context.Context, ref models.AssetReference, rc models.ProcedureContext) (*models.ResolvedAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := rc.ResolvePath(ref.Path)
	log := r.logger.With(
		zap.String("procedure", rc.ProcedureName),
		zap.Int("step", rc.StepOrdinal),
		zap.String("kind", string(ref.Kind)),
		zap.String("path", path),
	)

	var (
		frames []models.EncodedImage
		err    error
	)
	switch ref.Kind {
	case models.AssetKindImage:
		var img models.EncodedImage
		img, err = r.resolveImage(path)
		if err == nil {
			frames = []models.EncodedImage{img}
		}
	case models.AssetKindVideo:
		frames, err = r.resolveVideo(ctx, path, ref.Extraction)
	default:
		err = fmt.Errorf("%w: unknown kind %q", models.ErrInvalidAsset, ref.Kind)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.metrics.ObserveResolution(ref.Kind, err)
		log.Debug("Asset resolution failed", zap.Error(err))
		return nil, &models.ResolveError{Reference: ref, Path: path, Err: err}
	}

	r.metrics.ObserveResolution(ref.Kind, nil)
	asset := &models.ResolvedAsset{
		ID:         models.AssetID(rc, ref),
		Kind:       ref.Kind,
		Reference:  ref,
		SourcePath: path,
		Frames:     frames,
	}
	log.Debug("Asset resolved", zap.String("asset_id", asset.ID), zap.Int("frames", len(frames)))
	return asset, nil
}

func (r *Resolver) resolveImage(path string) (models.EncodedImage, error) {
	info, err := statSource(path)
	if err != nil {
		return models.EncodedImage{}, err
	}
	if r.cfg.MaxAssetBytes > 0 && info.Size() > r.cfg.MaxAssetBytes {
		return models.EncodedImage{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", models.ErrAssetTooLarge, info.Size(), r.cfg.MaxAssetBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.EncodedImage{}, fmt.Errorf("%w: %v", models.ErrAssetUnreadable, err)
	}
	return r.encode(data, nil)
}

func (r *Resolver) resolveVideo(ctx context.Context, path string, params *models.ExtractionParams) ([]models.EncodedImage, error) {
	if _, err := statSource(path); err != nil {
		return nil, err
	}
	offsets, err := r.plan(params)
	if err != nil {
		return nil, err
	}
	if r.frames == nil {
		return nil, fmt.Errorf("%w: no frame extractor configured", models.ErrFrameExtractionFailed)
	}

	// Каждое запрошенное смещение обязано дать кадр: подмена смещения - решение вызывающего.
	frames := make([]models.EncodedImage, 0, len(offsets))
	for _, offset := range offsets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := r.frames.ExtractFrame(ctx, path, offset)
		if err != nil {
			return nil, fmt.Errorf("%w at %.3fs: %v", models.ErrFrameExtractionFailed, offset, err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: no frame at %.3fs", models.ErrFrameExtractionFailed, offset)
		}
		at := offset
		img, err := r.encode(data, &at)
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}
	return frames, nil
}

// plan вычисляет смещения кадров, которые нужно извлечь. При выборе first
// извлекается только первое смещение.
func (r *Resolver) plan(params *models.ExtractionParams) ([]float64, error) {
	offset := r.cfg.DefaultOffset
	count := r.cfg.DefaultFrames
	interval := 0.0
	selection := r.cfg.DefaultSelection

	if params != nil {
		if params.Offset != nil {
			offset = *params.Offset
		}
		if params.Frames > 0 {
			count = params.Frames
		}
		interval = params.Interval
		if params.Selection != "" {
			if !params.Selection.IsValid() {
				return nil, fmt.Errorf("%w: unknown frame selection %q", models.ErrInvalidAsset, params.Selection)
			}
			selection = params.Selection
		}
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative frame offset %.3f", models.ErrInvalidAsset, offset)
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: negative frame interval %.3f", models.ErrInvalidAsset, interval)
	}
	if count > 1 && interval == 0 {
		interval = defaultFrameInterval
	}

	if selection == models.FrameSelectionFirst {
		count = 1
	}

	offsets := make([]float64, count)
	for i := range offsets {
		offsets[i] = offset + float64(i)*interval
	}
	return offsets, nil
}

// encode проверяет потолок размера, определяет MIME-тип и кодирует в base64.
func (r *Resolver) encode(data []byte, offset *float64) (models.EncodedImage, error) {
	if r.cfg.MaxAssetBytes > 0 && int64(len(data)) > r.cfg.MaxAssetBytes {
		return models.EncodedImage{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", models.ErrAssetTooLarge, len(data), r.cfg.MaxAssetBytes)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return models.EncodedImage{}, fmt.Errorf("%w: content is %s, not an image", models.ErrAssetUnreadable, mt.String())
	}
	return models.EncodedImage{
		MediaType: mt.String(),
		Data:      base64.StdEncoding.EncodeToString(data),
		Size:      len(data),
		Offset:    offset,
	}, nil
}

func statSource(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAssetUnreadable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: is a directory", models.ErrAssetUnreadable)
	}
	return info, nil
}
