package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"procedure-review/shared/models"
)

const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .DisplayTitle }}</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; color: #222; }
.step { border-top: 1px solid #ccc; padding: 1em 0; }
.asset { margin: 0.5em 0; }
.asset img, .asset video { max-width: 100%; max-height: 480px; }
.meta { color: #777; font-size: 0.85em; }
</style>
</head>
<body>
<h1>{{ .DisplayTitle }}</h1>
{{- if .Description }}
<p>{{ .Description }}</p>
{{- end }}
<p class="meta">{{ .ProcedureName }} &middot; {{ .Mode }} &middot; {{ .AssetCount }} assets &middot; generated {{ .GeneratedAt }}</p>
{{- range .Steps }}
<section class="step" id="step-{{ .Ordinal }}">
<h2>Step {{ .Ordinal }}{{ if .Title }}: {{ .Title }}{{ end }}</h2>
<p>{{ .Instruction }}</p>
{{- range .Assets }}
<figure class="asset" id="{{ .ID }}">
{{- if .File }}
{{- if eq .Kind "video" }}
<video controls src="{{ .File }}"></video>
{{- else }}
<img src="{{ .File }}" alt="{{ .Source }}">
{{- end }}
{{- else }}
{{- $source := .Source }}
{{- range .Frames }}
<img src="{{ dataURI . }}" alt="{{ $source }}">
{{- end }}
{{- end }}
<figcaption class="meta">{{ .ID }} &middot; {{ .Source }}{{ range .Frames }}{{ with .Offset }} @ {{ seconds . }}{{ end }}{{ end }}</figcaption>
</figure>
{{- end }}
</section>
{{- end }}
</body>
</html>
`

// HTMLRenderer рендерит payload в самодостаточную HTML-страницу.
// В режиме full кадры встраиваются как data: URI, в режиме extract - ссылки на файлы.
type HTMLRenderer struct {
	tmpl *template.Template
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.New("document").Funcs(template.FuncMap{
		// data: URI собран из base64 и MIME-типа, определённого резолвером.
		"dataURI": func(f models.PayloadFrame) template.URL {
			return template.URL("data:" + f.MediaType + ";base64," + f.Data)
		},
		"seconds": func(v float64) string {
			return strconv.FormatFloat(v, 'f', -1, 64) + "s"
		},
	}).Parse(documentTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

func (r *HTMLRenderer) Render(p *models.ReviewPayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
