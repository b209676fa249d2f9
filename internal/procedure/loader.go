// Package procedure читает описания процедур: YAML-файл с набором процедур
// и заранее разрешённую процедуру в JSON (результат dev-лога).
package procedure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"procedure-review/shared/models"
)

type document struct {
	Procedures []procedureDoc `yaml:"procedures"`
}

type procedureDoc struct {
	Name        string    `yaml:"procedure_name"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Steps       []stepDoc `yaml:"steps"`
}

type stepDoc struct {
	Title       string     `yaml:"title"`
	Instruction string     `yaml:"instruction"`
	Assets      []assetDoc `yaml:"assets"`
}

// assetDoc - элемент списка assets: ровно одно из image/video плюс
// необязательные параметры извлечения кадров для видео.
type assetDoc struct {
	Image     string   `yaml:"image"`
	Video     string   `yaml:"video"`
	Offset    *float64 `yaml:"offset"`
	Frames    int      `yaml:"frames"`
	Interval  float64  `yaml:"interval"`
	Selection string   `yaml:"selection"`
}

// LoadYAML читает файл процедур и возвращает процедуру с именем name.
// Относительные пути ассетов разрешаются от каталога файла.
func LoadYAML(path, name string) (*models.Procedure, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	baseDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, &models.ParseError{Source: path, Err: err}
	}

	for _, pd := range doc.Procedures {
		if pd.Name != name {
			continue
		}
		proc, err := pd.toModel(baseDir)
		if err != nil {
			return nil, &models.ParseError{Source: path, Err: err}
		}
		return proc, nil
	}

	return nil, &models.ParseError{
		Source: path,
		Err:    fmt.Errorf("%w: %q (available: %s)", models.ErrProcedureNotFound, name, strings.Join(doc.names(), ", ")),
	}
}

// ListNames возвращает имена всех процедур файла в порядке объявления.
func ListNames(path string) ([]string, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	return doc.names(), nil
}

func readDocument(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ParseError{Source: path, Err: err}
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &models.ParseError{Source: path, Err: err}
	}
	return &doc, nil
}

func (d *document) names() []string {
	names := make([]string, 0, len(d.Procedures))
	for _, p := range d.Procedures {
		names = append(names, p.Name)
	}
	return names
}

func (pd procedureDoc) toModel(baseDir string) (*models.Procedure, error) {
	proc := &models.Procedure{
		Name:        pd.Name,
		Title:       pd.Title,
		Description: pd.Description,
		BaseDir:     baseDir,
		Steps:       make([]models.Step, 0, len(pd.Steps)),
	}
	for i, sd := range pd.Steps {
		step := models.Step{
			Ordinal:     i + 1,
			Title:       sd.Title,
			Instruction: sd.Instruction,
			Assets:      make([]models.AssetReference, 0, len(sd.Assets)),
		}
		for j, ad := range sd.Assets {
			ref, err := ad.toModel()
			if err != nil {
				return nil, fmt.Errorf("step %d, asset %d: %w", i+1, j+1, err)
			}
			step.Assets = append(step.Assets, ref)
		}
		proc.Steps = append(proc.Steps, step)
	}
	return proc, nil
}

func (ad assetDoc) toModel() (models.AssetReference, error) {
	hasParams := ad.Offset != nil || ad.Frames != 0 || ad.Interval != 0 || ad.Selection != ""
	switch {
	case ad.Image != "" && ad.Video != "":
		return models.AssetReference{}, fmt.Errorf("%w: both image and video set", models.ErrInvalidAsset)
	case ad.Image != "":
		if hasParams {
			return models.AssetReference{}, fmt.Errorf("%w: frame parameters on image %q", models.ErrInvalidAsset, ad.Image)
		}
		return models.AssetReference{Kind: models.AssetKindImage, Path: ad.Image}, nil
	case ad.Video != "":
		ref := models.AssetReference{Kind: models.AssetKindVideo, Path: ad.Video}
		if hasParams {
			if ad.Frames < 0 {
				return models.AssetReference{}, fmt.Errorf("%w: negative frame count on video %q", models.ErrInvalidAsset, ad.Video)
			}
			selection := models.FrameSelection(ad.Selection)
			if selection != "" && !selection.IsValid() {
				return models.AssetReference{}, fmt.Errorf("%w: unknown selection %q", models.ErrInvalidAsset, ad.Selection)
			}
			ref.Extraction = &models.ExtractionParams{
				Offset:    ad.Offset,
				Frames:    ad.Frames,
				Interval:  ad.Interval,
				Selection: selection,
			}
		}
		return ref, nil
	default:
		return models.AssetReference{}, fmt.Errorf("%w: neither image nor video set", models.ErrInvalidAsset)
	}
}

// LoadResolvedJSON читает заранее разрешённую процедуру (файл *.resolved.json).
func LoadResolvedJSON(path string) (*models.ResolvedProcedure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ParseError{Source: path, Err: err}
	}
	var resolved models.ResolvedProcedure
	if err := json.Unmarshal(data, &resolved); err != nil {
		return nil, &models.ParseError{Source: path, Err: err}
	}
	if resolved.Name == "" {
		return nil, &models.ParseError{Source: path, Err: errors.New("procedure_name is empty")}
	}
	if len(resolved.Steps) == 0 {
		return nil, &models.ParseError{Source: path, Err: models.ErrEmptyProcedure}
	}
	return &resolved, nil
}
