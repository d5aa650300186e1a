package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dashboardapp "github.com/erp/gestao/internal/application/dashboard"
	recordsapp "github.com/erp/gestao/internal/application/records"
	"github.com/erp/gestao/internal/domain/agent"
	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/dashboard"
	"github.com/erp/gestao/internal/domain/records"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxToolRows bounds the rows a tool hands back to the model
const maxToolRows = 50

// RecordService is the record API the tools run against
type RecordService interface {
	Registry() *catalog.Registry
	List(ctx context.Context, tenantID uuid.UUID, module, name string, filter shared.Filter) (shared.Paginated[records.Row], error)
	Get(ctx context.Context, tenantID uuid.UUID, module, name, id string) (records.Row, error)
	Create(ctx context.Context, tenantID uuid.UUID, module, name string, payload map[string]any) (records.Row, error)
	Update(ctx context.Context, tenantID uuid.UUID, module, name, id string, payload map[string]any) (records.Row, error)
	Aggregate(ctx context.Context, tenantID uuid.UUID, module, name string, q records.AggregateQuery) ([]records.AggregateRow, error)
}

// DashboardService is the dashboard API the tools run against
type DashboardService interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*dashboardapp.DashboardResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter dashboardapp.ListFilter) (shared.Paginated[dashboardapp.DashboardListItem], error)
	ApplyPatch(ctx context.Context, tenantID, id uuid.UUID, req dashboardapp.PatchRequest) (*dashboardapp.DashboardResponse, error)
}

// NewToolRegistry registers every business tool. dashboards may be nil.
func NewToolRegistry(recs RecordService, dashboards DashboardService) (*agent.Registry, error) {
	t := &tools{records: recs, dashboards: dashboards}
	all := []agent.Tool{
		t.listResources(),
		t.listRecords(),
		t.getRecord(),
		t.createRecord(),
		t.updateRecord(),
		t.summarize(),
	}
	if dashboards != nil {
		all = append(all, t.getDashboard(), t.patchDashboard())
	}

	reg := agent.NewRegistry()
	for _, tool := range all {
		if err := reg.Register(tool); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

type tools struct {
	records    RecordService
	dashboards DashboardService
}

func (t *tools) resourceArgs() map[string]*agent.Schema {
	return map[string]*agent.Schema{
		"modulo":  agent.Enum("Módulo do recurso", t.records.Registry().Modules()...),
		"recurso": agent.String("Nome do recurso dentro do módulo, ex.: contas_pagar"),
	}
}

func withProps(base map[string]*agent.Schema, extra map[string]*agent.Schema) map[string]*agent.Schema {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func (t *tools) listResources() agent.Tool {
	return agent.Tool{
		Name:        "listar_recursos",
		Description: "Lista os recursos (tabelas) disponíveis e suas colunas. Use antes de consultar dados para saber os nomes corretos.",
		Schema: agent.Object(map[string]*agent.Schema{
			"modulo": agent.Enum("Filtra por módulo", t.records.Registry().Modules()...),
		}),
		Execute: func(_ context.Context, in agent.Invocation) (any, error) {
			module := strArg(in.Args, "modulo")
			reg := t.records.Registry()
			resources := reg.Resources()
			if module != "" {
				resources = reg.ModuleResources(module)
			}

			out := make([]map[string]any, 0, len(resources))
			for _, res := range resources {
				cols := make([]map[string]any, 0, len(res.Columns))
				for _, c := range res.Columns {
					col := map[string]any{"nome": c.Name, "rotulo": c.Label, "tipo": string(c.Type)}
					if c.Required {
						col["obrigatorio"] = true
					}
					if len(c.Enum) > 0 {
						col["valores"] = c.Enum
					}
					cols = append(cols, col)
				}
				out = append(out, map[string]any{
					"modulo":    res.Module,
					"recurso":   res.Name,
					"rotulo":    res.Label,
					"descricao": res.Description,
					"colunas":   cols,
				})
			}
			return map[string]any{"recursos": out}, nil
		},
	}
}

func (t *tools) listRecords() agent.Tool {
	return agent.Tool{
		Name: "listar_registros",
		Description: "Lista registros de um recurso com busca textual, filtros e ordenação. " +
			`Filtros usam "coluna" ou "coluna__operador" (eq, ne, gt, gte, lt, lte, contains, in).`,
		Schema: agent.Object(withProps(t.resourceArgs(), map[string]*agent.Schema{
			"busca":       agent.String("Texto buscado nas colunas pesquisáveis"),
			"filtros":     agent.FreeObject(`Filtros, ex.: {"status": "pendente", "valor__gte": 100}`),
			"ordenar_por": agent.String("Coluna de ordenação"),
			"direcao":     agent.Enum("Direção da ordenação", "asc", "desc"),
			"limite":      agent.Integer("Máximo de registros", 1, maxToolRows),
			"pagina":      agent.Integer("Página, a partir de 1", 1, 1000),
		}), "modulo", "recurso"),
		Execute: func(ctx context.Context, in agent.Invocation) (any, error) {
			module, name := strArg(in.Args, "modulo"), strArg(in.Args, "recurso")
			res, err := t.records.Registry().Lookup(module, name)
			if err != nil {
				return nil, err
			}
			page, err := t.records.List(ctx, in.TenantID, module, name, shared.Filter{
				Page:     intArg(in.Args, "pagina", 1),
				PageSize: intArg(in.Args, "limite", 20),
				OrderBy:  strArg(in.Args, "ordenar_por"),
				OrderDir: strArg(in.Args, "direcao"),
				Search:   strArg(in.Args, "busca"),
				Filters:  mapArg(in.Args, "filtros"),
			})
			if err != nil {
				return nil, err
			}
			rows := make([]map[string]any, len(page.Items))
			for i, row := range page.Items {
				rows[i] = shapeRow(res, row)
			}
			return map[string]any{
				"total":         page.Total,
				"pagina":        page.Page,
				"total_paginas": page.TotalPages,
				"registros":     rows,
			}, nil
		},
	}
}

func (t *tools) getRecord() agent.Tool {
	return agent.Tool{
		Name:        "buscar_registro",
		Description: "Busca um registro pela chave.",
		Schema: agent.Object(withProps(t.resourceArgs(), map[string]*agent.Schema{
			"id": agent.String("Chave do registro"),
		}), "modulo", "recurso", "id"),
		Execute: func(ctx context.Context, in agent.Invocation) (any, error) {
			module, name := strArg(in.Args, "modulo"), strArg(in.Args, "recurso")
			res, err := t.records.Registry().Lookup(module, name)
			if err != nil {
				return nil, err
			}
			row, err := t.records.Get(ctx, in.TenantID, module, name, strArg(in.Args, "id"))
			if err != nil {
				return nil, err
			}
			return shapeRow(res, row), nil
		},
	}
}

func (t *tools) createRecord() agent.Tool {
	return agent.Tool{
		Name:        "criar_registro",
		Description: "Cria um registro. Pedidos aceitam a lista \"itens\" em dados; o total é calculado a partir dos itens.",
		Schema: agent.Object(withProps(t.resourceArgs(), map[string]*agent.Schema{
			"dados": agent.FreeObject("Valores das colunas do novo registro"),
		}), "modulo", "recurso", "dados"),
		Mutates: true,
		Execute: func(ctx context.Context, in agent.Invocation) (any, error) {
			module, name := strArg(in.Args, "modulo"), strArg(in.Args, "recurso")
			res, err := t.records.Registry().Lookup(module, name)
			if err != nil {
				return nil, err
			}
			row, err := t.records.Create(ctx, in.TenantID, module, name, mapArg(in.Args, "dados"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"mensagem": "Registro criado com sucesso", "registro": shapeRow(res, row)}, nil
		},
	}
}

func (t *tools) updateRecord() agent.Tool {
	return agent.Tool{
		Name:        "atualizar_registro",
		Description: "Atualiza colunas editáveis de um registro existente.",
		Schema: agent.Object(withProps(t.resourceArgs(), map[string]*agent.Schema{
			"id":    agent.String("Chave do registro"),
			"dados": agent.FreeObject("Colunas a alterar e seus novos valores"),
		}), "modulo", "recurso", "id", "dados"),
		Mutates: true,
		Execute: func(ctx context.Context, in agent.Invocation) (any, error) {
			module, name := strArg(in.Args, "modulo"), strArg(in.Args, "recurso")
			res, err := t.records.Registry().Lookup(module, name)
			if err != nil {
				return nil, err
			}
			row, err := t.records.Update(ctx, in.TenantID, module, name, strArg(in.Args, "id"), mapArg(in.Args, "dados"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"mensagem": "Registro atualizado com sucesso", "registro": shapeRow(res, row)}, nil
		},
	}
}

func (t *tools) summarize() agent.Tool {
	return agent.Tool{
		Name: "resumir_dados",
		Description: "Calcula totais, médias, mínimos, máximos ou contagens de um recurso, opcionalmente agrupados " +
			"por uma coluna ou por período da coluna de data.",
		Schema: agent.Object(withProps(t.resourceArgs(), map[string]*agent.Schema{
			"medida":      agent.String("Coluna numérica agregada; omita para contar registros"),
			"agregacao":   agent.Enum("Função de agregação", "count", "sum", "avg", "min", "max"),
			"dimensao":    agent.String("Coluna de agrupamento"),
			"agrupamento": agent.Enum("Período quando a dimensão é uma data", "day", "week", "month", "year"),
			"filtros":     agent.FreeObject("Filtros no mesmo formato de listar_registros"),
			"de":          agent.String("Data inicial (AAAA-MM-DD) sobre a coluna de data do recurso"),
			"ate":         agent.String("Data final (AAAA-MM-DD)"),
			"limite":      agent.Integer("Máximo de grupos", 1, 100),
		}), "modulo", "recurso"),
		Execute: func(ctx context.Context, in agent.Invocation) (any, error) {
			module, name := strArg(in.Args, "modulo"), strArg(in.Args, "recurso")
			res, err := t.records.Registry().Lookup(module, name)
			if err != nil {
				return nil, err
			}
			conditions, err := conditionsArg(in.Args)
			if err != nil {
				return nil, err
			}

			measure := strArg(in.Args, "medida")
			agg := records.Aggregation(strArg(in.Args, "agregacao"))
			if agg == "" {
				agg = records.AggCount
				if measure != "" {
					agg = records.AggSum
				}
			}
			q := records.AggregateQuery{
				Measure:     measure,
				Aggregation: agg,
				Dimension:   strArg(in.Args, "dimensao"),
				Bucket:      records.DateBucket(strArg(in.Args, "agrupamento")),
				Conditions:  conditions,
				From:        strArg(in.Args, "de"),
				To:          strArg(in.Args, "ate"),
				Limit:       intArg(in.Args, "limite", 0),
			}
			result, err := t.records.Aggregate(ctx, in.TenantID, module, name, q)
			if err != nil {
				return nil, err
			}

			money := agg != records.AggCount && res.MoneyColumns()[measure]
			out := map[string]any{"recurso": res.FullName(), "agregacao": string(agg)}
			if measure != "" {
				out["medida"] = measure
			}
			if q.Dimension == "" {
				value := decimal.Zero
				if len(result) > 0 {
					value = result[0].Value
				}
				out["valor"] = formatAmount(value, money)
				return out, nil
			}
			groups := make([]map[string]any, len(result))
			for i, row := range result {
				groups[i] = map[string]any{"grupo": displayValue(row.Key, false), "valor": formatAmount(row.Value, money)}
			}
			out["dimensao"] = q.Dimension
			out["grupos"] = groups
			return out, nil
		},
	}
}

func (t *tools) getDashboard() agent.Tool {
	return agent.Tool{
		Name:        "obter_dashboard",
		Description: "Sem id, lista os dashboards. Com id, devolve o documento completo (widgets, gridConfig) e a versão atual, necessária para aplicar patches.",
		Schema: agent.Object(map[string]*agent.Schema{
			"id": agent.String("Id do dashboard"),
		}),
		Execute: func(ctx context.Context, in agent.Invocation) (any, error) {
			raw := strArg(in.Args, "id")
			if raw == "" {
				page, err := t.dashboards.List(ctx, in.TenantID, dashboardapp.ListFilter{PageSize: maxToolRows})
				if err != nil {
					return nil, err
				}
				return map[string]any{"dashboards": page.Items, "total": page.Total}, nil
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, shared.NewValidationError("id", "id inválido")
			}
			d, err := t.dashboards.Get(ctx, in.TenantID, id)
			if err != nil {
				return nil, err
			}
			return map[string]any{"id": d.ID, "nome": d.Name, "versao": d.Version, "documento": d.Document}, nil
		},
	}
}

func (t *tools) patchDashboard() agent.Tool {
	patch := agent.Object(map[string]*agent.Schema{
		"op": agent.Enum("Operação",
			string(dashboard.OpUpdateWidgetAttrs), string(dashboard.OpInsertWidgetAfter),
			string(dashboard.OpRemoveWidget), string(dashboard.OpAppendWidget), string(dashboard.OpUpdateGrid)),
		"widgetId":   agent.String("Widget alterado ou removido"),
		"afterId":    agent.String("Widget após o qual inserir"),
		"parentId":   agent.String("Container que recebe o widget em append-widget"),
		"attrs":      agent.FreeObject("Atributos substituídos por inteiro; null remove o atributo"),
		"widget":     agent.FreeObject("Widget completo a inserir"),
		"gridConfig": agent.FreeObject("Nova configuração da grade"),
	}, "op")
	return agent.Tool{
		Name: "aplicar_patch_dashboard",
		Description: "Aplica uma lista de patches a um dashboard de forma atômica. Informe a versão obtida com obter_dashboard; " +
			"se outra alteração ocorreu antes, obtenha o dashboard de novo.",
		Schema: agent.Object(map[string]*agent.Schema{
			"id":      agent.String("Id do dashboard"),
			"versao":  agent.Integer("Versão atual do dashboard", 1, 1e9),
			"patches": agent.Array("Patches aplicados em ordem", patch),
		}, "id", "versao", "patches"),
		Mutates: true,
		Execute: func(ctx context.Context, in agent.Invocation) (any, error) {
			id, err := uuid.Parse(strArg(in.Args, "id"))
			if err != nil {
				return nil, shared.NewValidationError("id", "id inválido")
			}
			raw, err := json.Marshal(in.Args["patches"])
			if err != nil {
				return nil, err
			}
			var patches []dashboard.Patch
			if err := json.Unmarshal(raw, &patches); err != nil {
				return nil, shared.NewValidationError("patches", "formato inválido: "+err.Error())
			}

			d, err := t.dashboards.ApplyPatch(ctx, in.TenantID, id, dashboardapp.PatchRequest{
				Version: intArg(in.Args, "versao", 0),
				Patches: patches,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"mensagem": fmt.Sprintf("%d patch(es) aplicado(s)", len(patches)),
				"versao":   d.Version,
				"widgets":  d.Document.WidgetIDs(),
			}, nil
		},
	}
}

// shapeRow formats a row for display: money in reais, dates as dd/mm/aaaa
func shapeRow(res *catalog.Resource, row records.Row) map[string]any {
	money := res.MoneyColumns()
	out := make(map[string]any, len(row))
	for k, v := range row {
		if items, ok := v.([]records.Row); ok && res.Lines != nil && k == res.Lines.Field {
			shaped := make([]map[string]any, len(items))
			for i, item := range items {
				shaped[i] = shapeLine(item)
			}
			out[k] = shaped
			continue
		}
		out[k] = displayValue(v, money[k])
	}
	return out
}

func shapeLine(row records.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = displayValue(v, strings.HasPrefix(k, "valor") || strings.HasPrefix(k, "preco"))
	}
	return out
}

func displayValue(v any, money bool) any {
	switch x := v.(type) {
	case decimal.Decimal:
		if money {
			return valueobject.FormatBRL(x)
		}
		return x.String()
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("02/01/2006")
		}
		return x.Format("02/01/2006 15:04")
	case nil:
		return nil
	}
	return v
}

func formatAmount(d decimal.Decimal, money bool) string {
	if money {
		return valueobject.FormatBRL(d)
	}
	if d.Equal(d.Truncate(0)) {
		return valueobject.FormatNumber(d, 0)
	}
	return valueobject.FormatNumber(d, 2)
}

func strArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return decimal.NewFromFloat(v).String()
	}
	return ""
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func conditionsArg(args map[string]any) ([]records.Condition, error) {
	filters := mapArg(args, "filtros")
	if len(filters) == 0 {
		return nil, nil
	}
	return recordsapp.ConditionsFromFilters(filters)
}

func mapArg(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}
