package models

import "fmt"

// Mode - режим генерации payload.
type Mode string

const (
	// ModeFull встраивает все ассеты прямо в payload.
	ModeFull Mode = "full"
	// ModeExtract оставляет только структуру и ссылки на скопированные файлы.
	ModeExtract Mode = "extract"
)

// Format - формат итогового документа.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// Format возвращает формат документа для режима: extract -> html, full -> pdf.
func (m Mode) Format() Format {
	if m == ModeExtract {
		return FormatHTML
	}
	return FormatPDF
}

// ParseMode converts the extract flag into a Mode.
func ParseMode(extract bool) Mode {
	if extract {
		return ModeExtract
	}
	return ModeFull
}

// PayloadFrame - встроенный кадр в схеме review-сервиса.
type PayloadFrame struct {
	MediaType string   `json:"media_type"`
	Data      string   `json:"data"`
	Offset    *float64 `json:"offset,omitempty"`
}

// PayloadAsset - ассет в payload. В режиме extract Frames пустой, а File
// указывает на файл в каталоге procedure_assets.
type PayloadAsset struct {
	ID     string         `json:"id"`
	Kind   AssetKind      `json:"kind"`
	Source string         `json:"source"`
	File   string         `json:"file,omitempty"`
	Frames []PayloadFrame `json:"frames,omitempty"`
}

// PayloadStep - запись шага в payload.
type PayloadStep struct {
	Ordinal     int            `json:"ordinal"`
	Title       string         `json:"title,omitempty"`
	Instruction string         `json:"instruction"`
	Assets      []PayloadAsset `json:"assets"`
}

// ReviewPayload - документ, который отправляется в review-сервис или рендерится локально.
// Создаётся один раз за запуск и после этого не изменяется.
type ReviewPayload struct {
	ProcedureName string        `json:"procedure_name"`
	Title         string        `json:"title,omitempty"`
	Description   string        `json:"description,omitempty"`
	Mode          Mode          `json:"mode"`
	GeneratedAt   string        `json:"generated_at"`
	AssetCount    int           `json:"asset_count"`
	Steps         []PayloadStep `json:"steps"`
}

// DisplayTitle returns the title, falling back to the procedure name.
func (p *ReviewPayload) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.ProcedureName
}

// Validate проверяет минимальную целостность payload, пришедшего извне.
func (p *ReviewPayload) Validate() error {
	if p.ProcedureName == "" {
		return fmt.Errorf("%w: procedure_name is empty", ErrInvalidPayload)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidPayload)
	}
	return nil
}
