package delivery

import (
	"encoding/json"
	"path/filepath"

	"go.uber.org/zap"

	"procedure-review/shared/models"
)

// DevLogger сохраняет промежуточные результаты запуска для отладки.
// Ошибки только логируются (WARN) и никогда не влияют на запуск.
type DevLogger struct {
	dir    string
	logger *zap.Logger
}

// NewDevLogger возвращает nil, если dir пуст; методы nil-получателя ничего не делают.
func NewDevLogger(dir string, logger *zap.Logger) *DevLogger {
	if dir == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DevLogger{dir: dir, logger: logger.Named("devlog")}
}

// LogResolved пишет <dir>/<name>.resolved.json. Этот файл принимается обратно через -input-json.
func (d *DevLogger) LogResolved(r *models.ResolvedProcedure) {
	if d == nil || r == nil {
		return
	}
	d.write(SanitizeName(r.Name)+".resolved.json", r)
}

// LogPayload пишет <dir>/<name>.payload.json.
func (d *DevLogger) LogPayload(p *models.ReviewPayload) {
	if d == nil || p == nil {
		return
	}
	d.write(SanitizeName(p.ProcedureName)+".payload.json", p)
}

func (d *DevLogger) write(name string, v any) {
	path := filepath.Join(d.dir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		d.logger.Warn("Failed to encode dev log entry", zap.String("path", path), zap.Error(err))
		return
	}
	if err := writeFileAtomic(path, data); err != nil {
		d.logger.Warn("Failed to write dev log entry", zap.String("path", path), zap.Error(err))
		return
	}
	d.logger.Debug("Dev log entry written", zap.String("path", path))
}
