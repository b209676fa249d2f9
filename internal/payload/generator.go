package payload

import (
	"path"
	"time"

	"procedure-review/shared/models"
)

// Generator строит ReviewPayload из разрешённой процедуры. Чистая функция от
// входа и часов; часы подменяются в тестах.
type Generator struct {
	now func() time.Time
}

// Option настраивает Generator.
type Option func(*Generator)

// WithClock задаёт источник времени для поля generated_at.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate строит payload. В режиме full каждый ассет несёт встроенные кадры,
// в режиме extract - только идентификатор и путь к скопированному файлу.
func (g *Generator) Generate(resolved *models.ResolvedProcedure, mode models.Mode) *models.ReviewPayload {
	if mode != models.ModeExtract {
		mode = models.ModeFull
	}
	p := &models.ReviewPayload{
		ProcedureName: resolved.Name,
		Title:         resolved.Title,
		Description:   resolved.Description,
		Mode:          mode,
		GeneratedAt:   g.now().UTC().Format(time.RFC3339),
		AssetCount:    resolved.AssetCount(),
		Steps:         make([]models.PayloadStep, 0, len(resolved.Steps)),
	}

	for _, step := range resolved.Steps {
		ps := models.PayloadStep{
			Ordinal:     step.Ordinal,
			Title:       step.Title,
			Instruction: step.Instruction,
			Assets:      make([]models.PayloadAsset, 0, len(step.Assets)),
		}
		for _, asset := range step.Assets {
			ps.Assets = append(ps.Assets, payloadAsset(asset, mode))
		}
		p.Steps = append(p.Steps, ps)
	}
	return p
}

func payloadAsset(asset models.ResolvedAsset, mode models.Mode) models.PayloadAsset {
	pa := models.PayloadAsset{
		ID:     asset.ID,
		Kind:   asset.Kind,
		Source: asset.Reference.Path,
	}
	if mode == models.ModeExtract {
		pa.File = path.Join(models.AssetsDirName, asset.FileName())
		return pa
	}
	pa.Frames = make([]models.PayloadFrame, 0, len(asset.Frames))
	for _, f := range asset.Frames {
		pa.Frames = append(pa.Frames, models.PayloadFrame{
			MediaType: f.MediaType,
			Data:      f.Data,
			Offset:    f.Offset,
		})
	}
	return pa
}
