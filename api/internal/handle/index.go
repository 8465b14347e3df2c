package handle

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"paste-ocr/api/internal/ocr"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type indexPage struct {
	Title       string
	Languages   []ocr.Language
	Default     ocr.Language
	ResultsPath string
}

// Index serves the paste page.
func (h *Handle) Index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := indexTmpl.Execute(&buf, indexPage{
		Title:       "Home",
		Languages:   h.langs.List(),
		Default:     h.langs.Default(),
		ResultsPath: "/results",
	})
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
