package dashboard

import (
	"sort"
	"strings"
)

// ComponentSpec describes how a widget type is rendered
type ComponentSpec struct {
	Type           string `json:"type"`
	Component      string `json:"component"`
	Label          string `json:"label"`
	NeedsData      bool   `json:"needs_data"`
	AllowsChildren bool   `json:"allows_children"`
	DefaultW       int    `json:"default_w"`
	DefaultH       int    `json:"default_h"`
}

var components = map[string]ComponentSpec{
	"kpi":       {Type: "kpi", Component: "KpiCard", Label: "Indicador", NeedsData: true, DefaultW: 3, DefaultH: 2},
	"bar":       {Type: "bar", Component: "BarChart", Label: "Gráfico de barras", NeedsData: true, DefaultW: 6, DefaultH: 4},
	"line":      {Type: "line", Component: "LineChart", Label: "Gráfico de linhas", NeedsData: true, DefaultW: 6, DefaultH: 4},
	"area":      {Type: "area", Component: "AreaChart", Label: "Gráfico de área", NeedsData: true, DefaultW: 6, DefaultH: 4},
	"pie":       {Type: "pie", Component: "PieChart", Label: "Gráfico de pizza", NeedsData: true, DefaultW: 4, DefaultH: 4},
	"table":     {Type: "table", Component: "DataTable", Label: "Tabela", NeedsData: true, DefaultW: 12, DefaultH: 5},
	"text":      {Type: "text", Component: "TextBlock", Label: "Texto", DefaultW: 12, DefaultH: 1},
	"container": {Type: "container", Component: "Container", Label: "Contêiner", AllowsChildren: true, DefaultW: 12, DefaultH: 6},
}

// aliases accepted on input and rewritten to the canonical type
var typeAliases = map[string]string{
	"card":       "kpi",
	"kpi-card":   "kpi",
	"bar-chart":  "bar",
	"barchart":   "bar",
	"line-chart": "line",
	"linechart":  "line",
	"area-chart": "area",
	"pie-chart":  "pie",
	"piechart":   "pie",
	"datatable":  "table",
	"markdown":   "text",
	"group":      "container",
}

// Component returns the spec of a widget type
func Component(widgetType string) (ComponentSpec, bool) {
	spec, ok := components[widgetType]
	return spec, ok
}

// Components lists the registered widget types sorted by type
func Components() []ComponentSpec {
	out := make([]ComponentSpec, 0, len(components))
	for _, c := range components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// ComponentTypes lists the accepted widget types
func ComponentTypes() []string {
	types := make([]string, 0, len(components))
	for t := range components {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func canonicalType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}
