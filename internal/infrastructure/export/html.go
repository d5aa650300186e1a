package export

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/erp/gestao/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

const maxTableRows = 50

// widgetView is the template model of one rendered widget
type widgetView struct {
	ID       string
	Kind     string
	Title    string
	Row, Col int
	W, H     int
	Error    string
	Value    string
	Content  string
	Columns  []string
	Rows     [][]string
	Series   []seriesPoint
	Children []widgetView
}

type seriesPoint struct {
	Label   string
	Value   string
	Percent int
}

type pageView struct {
	Title       string
	Description string
	Columns     int
	RowHeight   int
	Gap         int
	Dark        bool
	GeneratedAt string
	Widgets     []widgetView
}

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="pt-BR"><head><meta charset="UTF-8"><title>{{.Title}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;margin:0;color:{{if .Dark}}#e5e7eb{{else}}#111827{{end}};background:{{if .Dark}}#111827{{else}}#fff{{end}}}
h1{font-size:20px;margin:0 0 4px}.desc{font-size:12px;color:#6b7280;margin:0 0 12px}
.grid{display:grid;grid-template-columns:repeat({{.Columns}},1fr);grid-auto-rows:{{.RowHeight}}px;gap:{{.Gap}}px}
.w{border:1px solid #e5e7eb;border-radius:6px;padding:8px;overflow:hidden;break-inside:avoid}
.w h2{font-size:12px;margin:0 0 6px;color:#6b7280;text-transform:uppercase}
.kpi{font-size:26px;font-weight:bold}.err{color:#b91c1c;font-size:11px}
table{width:100%;border-collapse:collapse;font-size:10px}td,th{border-bottom:1px solid #f3f4f6;padding:2px 4px;text-align:left}
.bar{background:#3b82f6;height:8px;display:inline-block}.footer{font-size:9px;color:#9ca3af;margin-top:12px}
</style></head><body>
{{if .Title}}<h1>{{.Title}}</h1>{{end}}{{if .Description}}<p class="desc">{{.Description}}</p>{{end}}
<div class="grid">{{range .Widgets}}{{template "widget" .}}{{end}}</div>
<p class="footer">Gerado em {{.GeneratedAt}}</p>
</body></html>
{{define "widget"}}<div class="w" id="{{.ID}}" style="grid-area:{{.Row}} / {{.Col}} / span {{.H}} / span {{.W}}">
{{if .Title}}<h2>{{.Title}}</h2>{{end}}
{{if .Error}}<p class="err">{{.Error}}</p>
{{else if eq .Kind "kpi"}}<div class="kpi">{{.Value}}</div>
{{else if eq .Kind "text"}}<p>{{.Content}}</p>
{{else if eq .Kind "table"}}<table><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</table>
{{else if eq .Kind "series"}}<table>{{range .Series}}<tr><td>{{.Label}}</td><td><span class="bar" style="width:{{.Percent}}%"></span></td><td>{{.Value}}</td></tr>{{end}}</table>
{{else if eq .Kind "container"}}<div class="grid">{{range .Children}}{{template "widget" .}}{{end}}</div>
{{end}}</div>{{end}}`))

// DashboardHTML renders a rendered dashboard as a printable standalone page
func DashboardHTML(d dashboard.RenderedDashboard) (string, error) {
	view := pageView{
		Title:       d.Title,
		Description: d.Description,
		Columns:     d.GridConfig.Columns,
		RowHeight:   d.GridConfig.RowHeight,
		Gap:         d.GridConfig.GapPx(),
		Dark:        d.GridConfig.Theme == "dark",
		GeneratedAt: d.RenderedAt.Format("02/01/2006 15:04"),
		Widgets:     widgetViews(d.Widgets),
	}
	if view.Columns <= 0 {
		view.Columns = dashboard.DefaultColumns
	}
	if d.RenderedAt.IsZero() {
		view.GeneratedAt = time.Now().Format("02/01/2006 15:04")
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("export: render html: %w", err)
	}
	return buf.String(), nil
}

func widgetViews(ws []dashboard.RenderedWidget) []widgetView {
	out := make([]widgetView, 0, len(ws))
	for _, w := range ws {
		v := widgetView{
			ID:    w.ID,
			Title: w.Title,
			Error: w.Error,
			Row:   w.Position.Y + 1,
			Col:   w.Position.X + 1,
			W:     w.Position.W,
			H:     w.Position.H,
		}
		switch w.Type {
		case "kpi":
			v.Kind = "kpi"
			value := w.Value
			if value == nil {
				value = w.Data
			}
			v.Value = FormatValue(value, w.Format)
		case "text":
			v.Kind = "text"
			if s, ok := w.Options["content"].(string); ok {
				v.Content = s
			}
		case "table":
			v.Kind = "table"
			v.Columns, v.Rows = tableOf(w.Data, w.Options, w.Format)
		case "container":
			v.Kind = "container"
			v.Children = widgetViews(w.Children)
		default:
			v.Kind = "series"
			v.Series = seriesOf(w.Data, w.Format)
		}
		out = append(out, v)
	}
	return out
}

// FormatValue formats a scalar for display using pt-BR conventions
func FormatValue(v any, format string) string {
	if v == nil {
		return "-"
	}
	if format == "date" {
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.DateOnly, s); err == nil {
				return t.Format("02/01/2006")
			}
		}
	}
	if t, ok := v.(time.Time); ok {
		return t.Format("02/01/2006")
	}

	d, ok := asDecimal(v)
	if !ok {
		return fmt.Sprint(v)
	}
	switch format {
	case "currency":
		return valueobject.FormatBRL(d)
	case "percent":
		return valueobject.FormatNumber(d, 1) + "%"
	case "", "number":
		places := 0
		if !d.Equal(d.Truncate(0)) {
			places = 2
		}
		return valueobject.FormatNumber(d, places)
	}
	return d.String()
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case int32:
		return decimal.NewFromInt(int64(x)), true
	}
	return decimal.Zero, false
}

// seriesOf reads [{key, value}] shaped data
func seriesOf(data any, format string) []seriesPoint {
	items := listOf(data)
	points := make([]seriesPoint, 0, len(items))
	values := make([]decimal.Decimal, 0, len(items))
	peak := decimal.Zero
	for _, item := range items {
		m := mapOf(item)
		if m == nil {
			continue
		}
		d, _ := asDecimal(m["value"])
		if d.Abs().GreaterThan(peak) {
			peak = d.Abs()
		}
		values = append(values, d)
		points = append(points, seriesPoint{Label: FormatValue(m["key"], "text"), Value: FormatValue(m["value"], format)})
	}
	for i := range points {
		if !peak.IsZero() {
			points[i].Percent = int(values[i].Abs().Div(peak).Mul(decimal.NewFromInt(100)).IntPart())
		}
	}
	return points
}

func tableOf(data any, options map[string]any, format string) ([]string, [][]string) {
	items := listOf(data)
	var columns []string
	if cols, ok := options["columns"].([]any); ok {
		for _, c := range cols {
			if s, ok := c.(string); ok {
				columns = append(columns, s)
			}
		}
	}
	if len(columns) == 0 && len(items) > 0 {
		for k := range mapOf(items[0]) {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	}

	if len(items) > maxTableRows {
		items = items[:maxTableRows]
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		m := mapOf(item)
		row := make([]string, len(columns))
		for i, c := range columns {
			f := ""
			if strings.HasPrefix(c, "valor") {
				f = format
			}
			row[i] = FormatValue(m[c], f)
		}
		rows = append(rows, row)
	}
	return columns, rows
}

func listOf(data any) []any {
	switch x := data.(type) {
	case []any:
		return x
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out
	}
	return nil
}

func mapOf(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
