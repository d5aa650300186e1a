package dashboard

import (
	"context"
	"fmt"

	recordsapp "github.com/erp/gestao/internal/application/records"
	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/erp/gestao/internal/domain/records"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// defaultTableRows is the row limit of table queries without an explicit limit
const defaultTableRows = 50

// RecordSource is the read side of the record service used to feed widgets
type RecordSource interface {
	Resource(module, name string) (*catalog.Resource, error)
	List(ctx context.Context, tenantID uuid.UUID, module, name string, filter shared.Filter) (shared.Paginated[records.Row], error)
	Aggregate(ctx context.Context, tenantID uuid.UUID, module, name string, q records.AggregateQuery) ([]records.AggregateRow, error)
}

// DefaultDatasets are the named queries widgets can reference with dataSource.ref
func DefaultDatasets() map[string]dashboard.Query {
	monthly := func(module, resource, measure, dateField string) dashboard.Query {
		return dashboard.Query{
			Module: module, Resource: resource,
			Measure: measure, Aggregation: "sum",
			Dimension: dateField, Bucket: "month",
			OrderDir: "asc",
		}
	}
	byStatus := func(module, resource, measure, aggregation string) dashboard.Query {
		return dashboard.Query{
			Module: module, Resource: resource,
			Measure: measure, Aggregation: aggregation,
			Dimension: "status",
		}
	}
	return map[string]dashboard.Query{
		"financeiro.receitas_mensais":   monthly("financeiro", "contas_receber", "valor", "data_vencimento"),
		"financeiro.despesas_mensais":   monthly("financeiro", "contas_pagar", "valor", "data_vencimento"),
		"financeiro.pagar_por_status":   byStatus("financeiro", "contas_pagar", "valor", "sum"),
		"financeiro.receber_por_status": byStatus("financeiro", "contas_receber", "valor", "sum"),
		"vendas.faturamento_mensal":     monthly("vendas", "pedidos", "valor_total", "data_pedido"),
		"compras.compras_mensais":       monthly("compras", "pedidos", "valor_total", "data_pedido"),
		"crm.leads_por_status":          byStatus("crm", "leads", "", "count"),
	}
}

// Resolver feeds widgets from catalogued resources of one tenant.
// Grouped queries become [{key, value}] series, ungrouped ones a single value, and
// queries without a measure or dimension a list of rows.
type Resolver struct {
	source   RecordSource
	tenantID uuid.UUID
	datasets map[string]dashboard.Query
}

// NewResolver creates a Resolver for a tenant
func NewResolver(source RecordSource, tenantID uuid.UUID, datasets map[string]dashboard.Query) *Resolver {
	return &Resolver{source: source, tenantID: tenantID, datasets: datasets}
}

var _ dashboard.DataResolver = (*Resolver)(nil)

// Resolve implements dashboard.DataResolver
func (r *Resolver) Resolve(ctx context.Context, w dashboard.Widget) (any, error) {
	ds := w.DataSource
	switch {
	case ds == nil:
		return nil, nil
	case ds.Ref != "":
		q, ok := r.datasets[ds.Ref]
		if !ok {
			return nil, fmt.Errorf("conjunto de dados %q desconhecido", ds.Ref)
		}
		return r.query(ctx, q)
	case ds.Query != nil:
		return r.query(ctx, *ds.Query)
	}
	return ds.Static, nil
}

func (r *Resolver) query(ctx context.Context, q dashboard.Query) (any, error) {
	if q.Measure == "" && q.Dimension == "" && q.Aggregation != string(records.AggCount) {
		return r.rows(ctx, q)
	}

	conditions, err := recordsapp.ConditionsFromFilters(q.Filters)
	if err != nil {
		return nil, err
	}
	agg := records.Aggregation(q.Aggregation)
	if agg == "" {
		agg = records.AggCount
		if q.Measure != "" {
			agg = records.AggSum
		}
	}
	result, err := r.source.Aggregate(ctx, r.tenantID, q.Module, q.Resource, records.AggregateQuery{
		Measure:     q.Measure,
		Aggregation: agg,
		Dimension:   q.Dimension,
		Bucket:      records.DateBucket(q.Bucket),
		Conditions:  conditions,
		From:        q.From,
		To:          q.To,
		Limit:       q.Limit,
		OrderDir:    q.OrderDir,
	})
	if err != nil {
		return nil, err
	}

	if q.Dimension == "" {
		if len(result) == 0 {
			return decimal.Zero, nil
		}
		return result[0].Value, nil
	}
	series := make([]any, 0, len(result))
	for _, row := range result {
		series = append(series, map[string]any{"key": row.Key, "value": row.Value})
	}
	return series, nil
}

// rows lists records for table widgets, restricted to the selected columns
func (r *Resolver) rows(ctx context.Context, q dashboard.Query) (any, error) {
	filters := make(map[string]any, len(q.Filters)+2)
	for k, v := range q.Filters {
		filters[k] = v
	}
	if q.From != "" || q.To != "" {
		res, err := r.source.Resource(q.Module, q.Resource)
		if err != nil {
			return nil, err
		}
		if res.DateField == "" {
			return nil, fmt.Errorf("%s não possui campo de data para o período", res.FullName())
		}
		if q.From != "" {
			filters[res.DateField+"__gte"] = q.From
		}
		if q.To != "" {
			filters[res.DateField+"__lte"] = q.To
		}
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultTableRows
	}
	page, err := r.source.List(ctx, r.tenantID, q.Module, q.Resource, shared.Filter{
		Page:     1,
		PageSize: limit,
		OrderDir: q.OrderDir,
		Filters:  filters,
	})
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(page.Items))
	for _, row := range page.Items {
		m := make(map[string]any, len(row))
		if len(q.Columns) == 0 {
			for k, v := range row {
				m[k] = v
			}
		} else {
			for _, c := range q.Columns {
				m[c] = row[c]
			}
		}
		out = append(out, m)
	}
	return out, nil
}
