package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// DataResolver loads the data a widget is bound to. It is only called for widgets whose
// data source is a ref or a query; static data is used as is.
type DataResolver interface {
	Resolve(ctx context.Context, w Widget) (any, error)
}

// DataResolverFunc adapts a function to DataResolver
type DataResolverFunc func(ctx context.Context, w Widget) (any, error)

// Resolve calls f
func (f DataResolverFunc) Resolve(ctx context.Context, w Widget) (any, error) {
	return f(ctx, w)
}

// RenderedWidget is a widget mapped to its component with its data resolved
type RenderedWidget struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Component string           `json:"component"`
	Title     string           `json:"title,omitempty"`
	Position  Position         `json:"position"`
	Format    string           `json:"format,omitempty"`
	Styling   map[string]any   `json:"styling,omitempty"`
	Options   map[string]any   `json:"options,omitempty"`
	Data      any              `json:"data,omitempty"`
	Value     any              `json:"value,omitempty"`
	Error     string           `json:"error,omitempty"`
	Children  []RenderedWidget `json:"children,omitempty"`
}

// RenderedDashboard is the output of a render pass
type RenderedDashboard struct {
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	GridConfig  GridConfig       `json:"gridConfig"`
	Widgets     []RenderedWidget `json:"widgets"`
	Errors      int              `json:"errors"`
	RenderedAt  time.Time        `json:"renderedAt"`
}

// Renderer resolves widget data concurrently
type Renderer struct {
	concurrency   int
	widgetTimeout time.Duration
}

// RendererOption configures a Renderer
type RendererOption func(*Renderer)

// WithConcurrency bounds the number of widgets resolved at once
func WithConcurrency(n int) RendererOption {
	return func(r *Renderer) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithWidgetTimeout bounds the time spent resolving one widget
func WithWidgetTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d > 0 {
			r.widgetTimeout = d
		}
	}
}

// NewRenderer creates a Renderer
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{concurrency: 4, widgetTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type renderJob struct {
	node   *RenderedWidget
	widget Widget
}

// Render maps every widget to its component and resolves its data. Failures are recorded
// on the widget and counted; they never fail the whole dashboard.
func (r *Renderer) Render(ctx context.Context, doc *Document, resolver DataResolver) RenderedDashboard {
	out := RenderedDashboard{
		Title:       doc.Title,
		Description: doc.Description,
		GridConfig:  doc.GridConfig,
		Widgets:     skeleton(doc.Widgets),
		RenderedAt:  time.Now(),
	}

	var jobs []renderJob
	collectJobs(out.Widgets, doc.Widgets, &jobs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			r.resolve(gctx, job, resolver)
			return nil
		})
	}
	_ = g.Wait()

	out.Errors = countErrors(out.Widgets)
	return out
}

func countErrors(ws []RenderedWidget) int {
	n := 0
	for _, w := range ws {
		if w.Error != "" {
			n++
		}
		n += countErrors(w.Children)
	}
	return n
}

func skeleton(ws []Widget) []RenderedWidget {
	if len(ws) == 0 {
		return nil
	}
	out := make([]RenderedWidget, len(ws))
	for i, w := range ws {
		rw := RenderedWidget{
			ID:       w.ID,
			Type:     w.Type,
			Title:    w.Title,
			Position: w.Position,
			Format:   w.Format,
			Styling:  w.Styling,
			Options:  w.Options,
			Children: skeleton(w.Children),
		}
		if spec, ok := components[w.Type]; ok {
			rw.Component = spec.Component
		} else {
			rw.Error = fmt.Sprintf("tipo %q desconhecido", w.Type)
		}
		out[i] = rw
	}
	return out
}

func collectJobs(nodes []RenderedWidget, ws []Widget, jobs *[]renderJob) {
	for i := range ws {
		if ws[i].DataSource != nil && nodes[i].Error == "" {
			*jobs = append(*jobs, renderJob{node: &nodes[i], widget: ws[i]})
		}
		collectJobs(nodes[i].Children, ws[i].Children, jobs)
	}
}

func (r *Renderer) resolve(ctx context.Context, job renderJob, resolver DataResolver) {
	defer func() {
		if p := recover(); p != nil {
			job.node.Error = fmt.Sprintf("falha ao carregar dados: %v", p)
		}
	}()

	var data any
	if ds := job.widget.DataSource; ds.Static != nil {
		data = ds.Static
	} else {
		if resolver == nil {
			job.node.Error = "nenhuma fonte de dados configurada"
			return
		}
		wctx, cancel := context.WithTimeout(ctx, r.widgetTimeout)
		defer cancel()
		var err error
		if data, err = resolver.Resolve(wctx, job.widget); err != nil {
			job.node.Error = err.Error()
			return
		}
	}

	job.node.Data = data
	if path := job.widget.ValuePath; path != "" {
		v, ok := ResolvePath(data, path)
		if !ok {
			job.node.Error = fmt.Sprintf("valor %q não encontrado nos dados", path)
			return
		}
		job.node.Value = v
	}
}
