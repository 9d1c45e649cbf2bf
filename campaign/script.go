package campaign

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// ScriptParams are the inputs for a restricted run script.
type ScriptParams struct {
	// BaseDir is the runner's working directory on the remote host.
	BaseDir string
	// Kubeconfig is exported to the runner when set.
	Kubeconfig string
	// Runner is the per-catalog command; it receives the index and a comma
	// separated unit list.
	Runner string
	// Catalogs must already be normalized and have resolved indexes.
	Catalogs []CatalogSelection
}

const runScriptTemplate = `#!/bin/bash
# custom run generated by certwatch
set -o pipefail
cd {{ shquote .BaseDir }} || exit 1
{{- if .Kubeconfig }}
export KUBECONFIG={{ shquote .Kubeconfig }}
{{- end }}
{{- range .Catalogs }}
{{ $.Runner }} {{ shquote .Index }} {{ join "," .Units | shquote }}
{{- end }}
`

var runScript = template.Must(template.New("run").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{"shquote": ShellQuote}).
	Parse(runScriptTemplate))

// BuildRunScript renders a bash script with one runner invocation per catalog.
func BuildRunScript(p ScriptParams) (string, error) {
	if len(p.Catalogs) == 0 {
		return "", ErrNoUnitsSpecified
	}
	if p.Runner == "" {
		return "", fmt.Errorf("runner command is required")
	}
	var buf bytes.Buffer
	if err := runScript.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("rendering run script: %w", err)
	}
	return buf.String(), nil
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
