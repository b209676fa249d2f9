package procedure

import (
	"path/filepath"
	"strings"

	"procedure-review/shared/models"
)

// Source описывает вход запуска: готовый JSON (InputJSON) имеет приоритет над
// процедурой Procedure из YAML-файла ProceduresFile.
type Source struct {
	ProceduresFile string
	Procedure      string
	InputJSON      string
}

// Name - имя запуска до загрузки: имя процедуры либо имя JSON-файла.
func (s Source) Name() string {
	if s.InputJSON != "" {
		return strings.TrimSuffix(filepath.Base(s.InputJSON), ".resolved.json")
	}
	return s.Procedure
}

// Load загружает ровно одно из двух: процедуру для сборки или уже разрешённую процедуру.
func (s Source) Load() (*models.Procedure, *models.ResolvedProcedure, error) {
	if s.InputJSON != "" {
		resolved, err := LoadResolvedJSON(s.InputJSON)
		return nil, resolved, err
	}
	if s.Procedure == "" {
		return nil, nil, models.ErrNoProcedureInput
	}
	proc, err := LoadYAML(s.ProceduresFile, s.Procedure)
	return proc, nil, err
}
