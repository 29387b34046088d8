package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gobeaver/fgen"
)

// Output formats accepted by --output.
const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
	formatTree = "tree"
)

var formats = []string{formatJSON, formatYAML, formatTOML, formatTree}

var (
	accent  = lipgloss.Color("#FF9F1C")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	failure = lipgloss.Color("#FF3B30")

	pathStyle    = lipgloss.NewStyle().Bold(true)
	driverStyle  = lipgloss.NewStyle().Foreground(accent)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success)
	failureStyle = lipgloss.NewStyle().Foreground(failure).Bold(true)
)

// report is the outcome of processing one file.
type report struct {
	Path   string
	Result *fgen.Result
	Err    error
}

func (r report) MarshalJSON() ([]byte, error) {
	if r.Err == nil && r.Result != nil {
		return r.Result.MarshalJSON()
	}
	return json.Marshal(struct {
		Path  string     `json:"path"`
		Stage fgen.Stage `json:"stage,omitempty"`
		Error string     `json:"error"`
	}{r.Path, fgen.StageOf(r.Err), errString(r.Err)})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func validFormat(format string) error {
	for _, f := range formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unknown output format: %s (want one of %s)", format, strings.Join(formats, ", "))
}

// render writes reports in the requested format.
func render(w io.Writer, format string, reports []report) error {
	switch format {
	case formatJSON:
		return renderJSON(w, reports)
	case formatYAML:
		return renderYAML(w, reports)
	case formatTOML:
		return renderTOML(w, reports)
	case formatTree:
		return renderTree(w, reports)
	default:
		return validFormat(format)
	}
}

func renderJSON(w io.Writer, reports []report) error {
	if reports == nil {
		reports = []report{}
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// renderYAML goes through a yaml.Node so mappings keep the order of the
// JSON encoding.
func renderYAML(w io.Writer, reports []report) error {
	if reports == nil {
		reports = []report{}
	}
	data, err := json.Marshal(reports)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	resetStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}

// renderTOML writes the reports as an array of tables. TOML has no null
// and its tables are unordered, so null values are dropped.
func renderTOML(w io.Writer, reports []report) error {
	data, err := json.Marshal(reports)
	if err != nil {
		return err
	}
	var docs []any
	if err := json.Unmarshal(data, &docs); err != nil {
		return err
	}
	if docs == nil {
		docs = []any{}
	}
	out, err := toml.Marshal(map[string]any{"results": dropNulls(docs)})
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if val == nil {
				delete(t, k)
				continue
			}
			t[k] = dropNulls(val)
		}
		return t
	case []any:
		kept := t[:0]
		for _, val := range t {
			if val != nil {
				kept = append(kept, dropNulls(val))
			}
		}
		return kept
	default:
		return v
	}
}

// renderTree prints a human readable outline of each report.
func renderTree(w io.Writer, reports []report) error {
	var buf bytes.Buffer
	for _, r := range reports {
		if r.Err != nil || r.Result == nil {
			fmt.Fprintf(&buf, "%s %s\n", failureStyle.Render("✗"), pathStyle.Render(r.Path))
			if stage := fgen.StageOf(r.Err); stage != "" {
				fmt.Fprintf(&buf, "  %s %s\n", mutedStyle.Render("stage:"), stage)
			}
			fmt.Fprintf(&buf, "  %s %s\n", mutedStyle.Render("error:"), errString(r.Err))
			continue
		}

		res := r.Result
		fmt.Fprintf(&buf, "%s %s %s\n",
			successStyle.Render("✓"),
			pathStyle.Render(res.Path),
			mutedStyle.Render(fmt.Sprintf("(%s → %s)", res.FileType.Type, res.Driver)))
		for _, driver := range res.Drivers() {
			for _, handler := range res.Handlers(driver) {
				fmt.Fprintf(&buf, "  %s\n", driverStyle.Render(handler))
				for _, variant := range res.Variants(driver, handler) {
					out, _ := res.Get(driver, handler, variant)
					fmt.Fprintf(&buf, "    %s %s\n", variant+":", compact(out))
				}
			}
		}
		for _, s := range res.Skipped {
			fmt.Fprintf(&buf, "  %s %s.%s %s\n",
				failureStyle.Render("skipped"), s.Handler, s.Variant,
				mutedStyle.Render(fmt.Sprintf("[%s] %s", s.Reason, errString(s.Err))))
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// compact renders a handler output on one line. Maps are printed with
// sorted keys.
func compact(out fgen.Output) string {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprint(out)
	}
	var m map[string]any
	if json.Unmarshal(data, &m) != nil || m == nil {
		return string(data)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := json.Marshal(m[k])
		parts = append(parts, k+"="+strings.Trim(string(v), `"`))
	}
	return strings.Join(parts, " ")
}
