// Package dashboard implements the dashboard document language: a grid of widgets bound
// to data sources, parsed from JSON or YAML, patched incrementally and rendered with data.
package dashboard

// Default grid dimensions applied when a document omits them
const (
	DefaultColumns   = 12
	DefaultRowHeight = 80
	DefaultGap       = 16
)

// Document is the root of a dashboard definition
type Document struct {
	Title       string     `json:"title,omitempty" validate:"max=200"`
	Description string     `json:"description,omitempty" validate:"max=2000"`
	GridConfig  GridConfig `json:"gridConfig"`
	Widgets     []Widget   `json:"widgets"`
}

// GridConfig describes the layout grid widgets are placed on. Gap is nil when the document
// leaves it out, so an explicit 0 survives normalization.
type GridConfig struct {
	Columns   int    `json:"columns" validate:"gte=1,lte=24"`
	RowHeight int    `json:"rowHeight" validate:"gte=20,lte=400"`
	Gap       *int   `json:"gap,omitempty" validate:"omitempty,gte=0,lte=64"`
	Theme     string `json:"theme,omitempty" validate:"omitempty,oneof=light dark"`
}

// GapPx is the gap between widgets in pixels
func (g GridConfig) GapPx() int {
	if g.Gap == nil {
		return DefaultGap
	}
	return *g.Gap
}

// IntPtr returns a pointer to n, for optional document fields
func IntPtr(n int) *int { return &n }

// Position places a widget on the grid, in grid units
type Position struct {
	X int `json:"x" validate:"gte=0"`
	Y int `json:"y" validate:"gte=0"`
	W int `json:"w" validate:"gte=1"`
	H int `json:"h" validate:"gte=1,lte=48"`
}

// Widget is one node of the widget tree
type Widget struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Title      string         `json:"title,omitempty"`
	Position   Position       `json:"position"`
	DataSource *DataSource    `json:"dataSource,omitempty"`
	ValuePath  string         `json:"valuePath,omitempty"`
	Format     string         `json:"format,omitempty"`
	Styling    map[string]any `json:"styling,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
	Children   []Widget       `json:"children,omitempty"`
}

// DataSource binds a widget to data. Exactly one of Ref, Query or Static is set.
type DataSource struct {
	// Ref names a dataset provided by the resolver, e.g. "financeiro.fluxo_caixa"
	Ref    string `json:"ref,omitempty"`
	Query  *Query `json:"query,omitempty"`
	Static any    `json:"static,omitempty"`
}

// Query aggregates or lists a catalogued resource
type Query struct {
	Module      string         `json:"module" validate:"required"`
	Resource    string         `json:"resource" validate:"required"`
	Measure     string         `json:"measure,omitempty"`
	Aggregation string         `json:"aggregation,omitempty" validate:"omitempty,oneof=count sum avg min max"`
	Dimension   string         `json:"dimension,omitempty"`
	Bucket      string         `json:"bucket,omitempty" validate:"omitempty,oneof=day week month year"`
	Columns     []string       `json:"columns,omitempty"`
	Filters     map[string]any `json:"filters,omitempty"`
	From        string         `json:"from,omitempty"`
	To          string         `json:"to,omitempty"`
	Limit       int            `json:"limit,omitempty" validate:"gte=0,lte=500"`
	OrderDir    string         `json:"orderDir,omitempty" validate:"omitempty,oneof=asc desc"`
}

// Clone returns a deep copy of the document
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.GridConfig.Gap != nil {
		out.GridConfig.Gap = IntPtr(*d.GridConfig.Gap)
	}
	out.Widgets = cloneWidgets(d.Widgets)
	return &out
}

// Clone returns a deep copy of the widget and its subtree
func (w Widget) Clone() Widget {
	out := w
	if w.DataSource != nil {
		ds := *w.DataSource
		if ds.Query != nil {
			q := *ds.Query
			q.Columns = append([]string(nil), q.Columns...)
			q.Filters = cloneMap(q.Filters)
			ds.Query = &q
		}
		ds.Static = cloneValue(ds.Static)
		out.DataSource = &ds
	}
	out.Styling = cloneMap(w.Styling)
	out.Options = cloneMap(w.Options)
	out.Children = cloneWidgets(w.Children)
	return out
}

func cloneWidgets(ws []Widget) []Widget {
	if ws == nil {
		return nil
	}
	out := make([]Widget, len(ws))
	for i, w := range ws {
		out[i] = w.Clone()
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

// Walk visits every widget depth-first in document order. Returning false stops the walk.
func (d *Document) Walk(fn func(w *Widget, parent *Widget) bool) {
	walk(d.Widgets, nil, fn)
}

func walk(ws []Widget, parent *Widget, fn func(w *Widget, parent *Widget) bool) bool {
	for i := range ws {
		if !fn(&ws[i], parent) {
			return false
		}
		if !walk(ws[i].Children, &ws[i], fn) {
			return false
		}
	}
	return true
}

// Find returns the widget with the given id anywhere in the tree
func (d *Document) Find(id string) (*Widget, bool) {
	var found *Widget
	d.Walk(func(w *Widget, _ *Widget) bool {
		if w.ID == id {
			found = w
			return false
		}
		return true
	})
	return found, found != nil
}

// WidgetIDs lists every widget id in document order
func (d *Document) WidgetIDs() []string {
	var ids []string
	d.Walk(func(w *Widget, _ *Widget) bool {
		ids = append(ids, w.ID)
		return true
	})
	return ids
}
