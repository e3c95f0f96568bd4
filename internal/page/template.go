package page

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"sync"

	"github.com/dmorgan81/fluxgen/internal/log"
)

//go:embed assets/index.html
var indexTmpl string

type Params struct {
	Prompt        string
	Model         string
	Created       string
	Width         int
	Height        int
	GuidanceScale float64
	Steps         int
	Seed          int64
	Images        []string
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func (g *Templator) Template(ctx context.Context, params Params) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("index").Parse(indexTmpl))
	})

	log.FromContextOrDiscard(ctx).WithGroup("templator").Info("generating page", "images", len(params.Images))

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
