package resolver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// FFmpegExtractor достаёт кадр внешним бинарником ffmpeg, PNG отдаётся через stdout.
type FFmpegExtractor struct {
	binary string
	logger *zap.Logger
}

// NewFFmpegExtractor создаёт экстрактор. Пустой binary означает "ffmpeg" из PATH.
func NewFFmpegExtractor(binary string, logger *zap.Logger) *FFmpegExtractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegExtractor{binary: binary, logger: logger.Named("ffmpeg")}
}

// ExtractFrame возвращает PNG-кадр на смещении offset. Если видео короче смещения,
// ffmpeg завершается успешно с пустым выводом - это обрабатывает вызывающий.
func (e *FFmpegExtractor) ExtractFrame(ctx context.Context, path string, offset float64) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("Extracting frame", zap.String("path", path), zap.Float64("offset", offset))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s failed: %w: %s", e.binary, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
