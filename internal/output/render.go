package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"
)

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool

	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style

	Header lipgloss.Style
	Cell   lipgloss.Style
}

// NewRenderer creates a renderer. Styling is enabled when writing to a TTY,
// or when forceStyled is true.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	width, tty := terminalInfo(w)
	styled := tty || forceStyled

	if styled {
		lipgloss.SetColorProfile(2) // TrueColor
	} else {
		lipgloss.SetColorProfile(0) // Ascii
	}

	r := &Renderer{width: width, styled: styled}

	if styled {
		r.Summary = lipgloss.NewStyle().Foreground(lipgloss.Color("#00A1E0")).Bold(true)
		r.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
		r.Data = lipgloss.NewStyle()
		r.Error = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true)
		r.Hint = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true)
		r.Header = lipgloss.NewStyle().Bold(true)
		r.Cell = lipgloss.NewStyle()
	} else {
		r.Summary = lipgloss.NewStyle()
		r.Muted = lipgloss.NewStyle()
		r.Data = lipgloss.NewStyle()
		r.Error = lipgloss.NewStyle()
		r.Hint = lipgloss.NewStyle()
		r.Header = lipgloss.NewStyle()
		r.Cell = lipgloss.NewStyle()
	}

	return r
}

// isTTY reports whether the writer is a character device.
func isTTY(w io.Writer) bool {
	_, tty := terminalInfo(w)
	return tty
}

func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if tw, _, err := term.GetSize(f.Fd()); err == nil && tw >= 40 {
			width = tw
		}
		fi, err := f.Stat()
		if err == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
			isTTY = true
		}
	}

	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	if resp.table != nil {
		r.renderTable(&b, resp.table.Headers, resp.table.Rows)
	} else {
		r.renderData(&b, normalizeData(resp.Data))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")

	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		if maps := toMapSlice(d); maps != nil {
			headers, rows := autoColumns(maps)
			r.renderTable(b, headers, rows)
			return
		}
		for _, item := range d {
			b.WriteString(r.Data.Render(fmt.Sprintf("%v", item)))
			b.WriteString("\n")
		}

	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(r.Muted.Render(k + ": "))
			b.WriteString(r.Data.Render(fmt.Sprintf("%v", d[k])))
			b.WriteString("\n")
		}

	case string:
		b.WriteString(r.Data.Render(d))
		b.WriteString("\n")

	case nil:
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")

	default:
		b.WriteString(r.Data.Render(fmt.Sprintf("%v", data)))
		b.WriteString("\n")
	}
}

func (r *Renderer) renderTable(b *strings.Builder, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			return r.Cell
		})

	t.Headers(headers...)
	for _, row := range rows {
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

func toMapSlice(slice []any) []map[string]any {
	if len(slice) == 0 {
		return nil
	}
	result := make([]map[string]any, 0, len(slice))
	for _, item := range slice {
		m, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		result = append(result, m)
	}
	return result
}

// autoColumns derives a stable column layout from a slice of objects.
func autoColumns(data []map[string]any) ([]string, [][]string) {
	keySet := map[string]bool{}
	for _, item := range data {
		for k, v := range item {
			switch v.(type) {
			case map[string]any, []any:
				continue // skip nested values
			}
			keySet[k] = true
		}
	}

	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(data))
	for _, item := range data {
		row := make([]string, len(keys))
		for i, k := range keys {
			if v, ok := item[k]; ok && v != nil {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		rows = append(rows, row)
	}

	return keys, rows
}
