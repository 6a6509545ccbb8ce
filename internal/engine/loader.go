package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Target names what to evaluate. Empty fields are left out of template data.
type Target struct {
	Macro  string
	Iso    string
	Tile   string
	Chip   string
	System string
	DNN    string
	Layer  string
	// MaxUtilization sets the MAX_UTILIZATION variable.
	MaxUtilization bool
	// Data carries extra template values; the named fields above win.
	Data map[string]any
}

// TemplateData is the value map handed to specification templates.
func (t Target) TemplateData() map[string]any {
	data := make(map[string]any, len(t.Data)+7)
	for k, v := range t.Data {
		data[k] = v
	}
	iso := t.Iso
	if iso == "" {
		iso = t.Macro
	}
	for k, v := range map[string]string{
		"macro":  t.Macro,
		"iso":    iso,
		"tile":   t.Tile,
		"chip":   t.Chip,
		"system": t.System,
		"dnn":    t.DNN,
		"layer":  t.Layer,
	} {
		if v != "" {
			data[k] = v
		}
	}
	return data
}

// SpecLoader assembles a Specification for a target.
type SpecLoader interface {
	Load(ctx context.Context, t Target) (*Specification, error)
}

// DefaultTopTemplate is the entry template under the models directory.
const DefaultTopTemplate = "top.yaml.tmpl"

// MaxUtilizationVar is set when a target asks for maximum utilization.
const MaxUtilizationVar = "MAX_UTILIZATION"

// FileLoader renders a YAML template from a models directory. Templates can pull
// in other files relative to ModelsDir with {{ include "path" . }}.
type FileLoader struct {
	ModelsDir string
	Top       string
}

func (l *FileLoader) Load(ctx context.Context, t Target) (*Specification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	top := orDefault(l.Top, DefaultTopTemplate)

	var render func(name string, data any) (string, error)
	render = func(name string, data any) (string, error) {
		path := filepath.Join(l.ModelsDir, name)
		src, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		tmpl, err := template.New(name).Funcs(template.FuncMap{"include": render}).Parse(string(src))
		if err != nil {
			return "", fmt.Errorf("parse template %s: %w", path, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("render template %s: %w", path, err)
		}
		return buf.String(), nil
	}

	text, err := render(top, t.TemplateData())
	if err != nil {
		return nil, err
	}
	spec, err := ParseSpecification([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("decode specification from %s: %w", top, err)
	}
	if t.MaxUtilization {
		spec.Variables.Set(MaxUtilizationVar, true)
	}
	return spec, nil
}
