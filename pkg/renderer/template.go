package renderer

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateString renders a template pattern with sprig's function map, the
// same dialect the embedded Dockerfile skeleton uses.
func TemplateString(pattern string, args any) (string, error) {
	t, err := template.New("pattern").Funcs(sprig.TxtFuncMap()).Parse(pattern)
	if err != nil {
		return "", err
	}
	var output bytes.Buffer
	if err := t.Execute(&output, args); err != nil {
		return "", err
	}
	return output.String(), nil
}
