package models

import (
	"fmt"
	"path/filepath"
)

// AssetKind - тип медиа-ресурса, на который ссылается шаг процедуры.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
)

// FrameSelection определяет, какие из извлечённых кадров видео попадают в документ.
type FrameSelection string

const (
	// FrameSelectionFirst оставляет только первый извлечённый кадр.
	FrameSelectionFirst FrameSelection = "first"
	// FrameSelectionAll встраивает все извлечённые кадры по порядку смещений.
	FrameSelectionAll FrameSelection = "all"
)

// IsValid проверяет, что правило выбора кадров известно.
func (s FrameSelection) IsValid() bool {
	return s == FrameSelectionFirst || s == FrameSelectionAll
}

// Procedure - разобранное описание процедуры. После разбора не изменяется.
type Procedure struct {
	Name        string `json:"procedure_name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	// BaseDir - каталог, относительно которого разрешаются пути ассетов.
	BaseDir string `json:"base_dir,omitempty"`
	Steps   []Step `json:"steps"`
}

// Step - один шаг процедуры. Ordinal начинается с 1.
type Step struct {
	Ordinal     int              `json:"ordinal"`
	Title       string           `json:"title,omitempty"`
	Instruction string           `json:"instruction"`
	Assets      []AssetReference `json:"assets,omitempty"`
}

// ExtractionParams - параметры извлечения кадров из видео.
// Нулевые значения означают "взять из конфигурации резолвера".
type ExtractionParams struct {
	Offset    *float64       `json:"offset,omitempty"`
	Frames    int            `json:"frames,omitempty"`
	Interval  float64        `json:"interval,omitempty"`
	Selection FrameSelection `json:"selection,omitempty"`
}

// AssetReference - ссылка шага на изображение или видео.
type AssetReference struct {
	Kind       AssetKind         `json:"kind"`
	Path       string            `json:"path"`
	Extraction *ExtractionParams `json:"extraction,omitempty"`
}

// String is used in error messages and logs.
func (r AssetReference) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.Path)
}

// ProcedureContext передаётся резолверу вместе со ссылкой: из него берутся
// базовый каталог и координаты ссылки для стабильного идентификатора.
type ProcedureContext struct {
	ProcedureName string
	BaseDir       string
	StepOrdinal   int
	AssetIndex    int
}

// ResolvePath возвращает абсолютный (или относительный к BaseDir) путь ассета.
func (c ProcedureContext) ResolvePath(path string) string {
	if filepath.IsAbs(path) || c.BaseDir == "" {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

// ReferenceCount возвращает общее число ссылок на ассеты во всех шагах.
func (p *Procedure) ReferenceCount() int {
	n := 0
	for _, s := range p.Steps {
		n += len(s.Assets)
	}
	return n
}
