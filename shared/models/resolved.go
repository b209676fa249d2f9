package models

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AssetsDirName - имя каталога рядом с документом, куда в режиме extract копируются исходные файлы.
const AssetsDirName = "procedure_assets"

// assetNamespace - пространство имён для uuid.NewSHA1 при построении идентификаторов ассетов.
var assetNamespace = uuid.MustParse("8f0f4f7e-3c55-4b0b-9c1f-6d1c2a1e7b42")

// EncodedImage - одно изображение (или кадр видео) в виде base64.
type EncodedImage struct {
	MediaType string   `json:"media_type"`
	Data      string   `json:"data"`
	Size      int      `json:"size"`
	Offset    *float64 `json:"offset,omitempty"`
}

// DataURI возвращает изображение в виде data: URI для встраивания в HTML.
func (e EncodedImage) DataURI() string {
	return "data:" + e.MediaType + ";base64," + e.Data
}

// ResolvedAsset - ссылка после чтения/извлечения и кодирования.
// Для изображения Frames содержит ровно один элемент, для видео - не меньше одного.
type ResolvedAsset struct {
	ID         string         `json:"id"`
	Kind       AssetKind      `json:"kind"`
	Reference  AssetReference `json:"reference"`
	SourcePath string         `json:"source_path"`
	Frames     []EncodedImage `json:"frames"`
}

// FileName - имя файла, под которым исходник копируется в каталог ассетов.
func (a ResolvedAsset) FileName() string {
	return a.ID + strings.ToLower(filepath.Ext(a.SourcePath))
}

// ResolvedStep - шаг, в котором все ссылки заменены разрешёнными ассетами.
type ResolvedStep struct {
	Ordinal     int             `json:"ordinal"`
	Title       string          `json:"title,omitempty"`
	Instruction string          `json:"instruction"`
	Assets      []ResolvedAsset `json:"assets"`
}

// ResolvedProcedure - результат сборки: полный порядок шагов и ассетов сохранён.
type ResolvedProcedure struct {
	Name        string         `json:"procedure_name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Steps       []ResolvedStep `json:"steps"`
}

// AssetCount возвращает число разрешённых ассетов во всех шагах.
func (p *ResolvedProcedure) AssetCount() int {
	n := 0
	for _, s := range p.Steps {
		n += len(s.Assets)
	}
	return n
}

// AssetID строит стабильный идентификатор ассета: он одинаков в payload и в
// имени скопированного файла и не зависит от порядка завершения воркеров.
func AssetID(rc ProcedureContext, ref AssetReference) string {
	key := fmt.Sprintf("%s/%d/%d/%s", rc.ProcedureName, rc.StepOrdinal, rc.AssetIndex, ref.Path)
	sum := uuid.NewSHA1(assetNamespace, []byte(key))
	return fmt.Sprintf("s%02d-a%02d-%s", rc.StepOrdinal, rc.AssetIndex+1, sum.String()[:8])
}
