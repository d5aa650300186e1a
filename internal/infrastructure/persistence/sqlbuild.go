package persistence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/records"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/uuid"
)

// Statements use "?" placeholders; GORM's postgres dialector rebinds them to $n.
// Identifiers always come from the catalog and are quoted.

const maxAggregateGroups = 500

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func tableName(res *catalog.Resource) string {
	return quoteIdent(res.Schema) + "." + quoteIdent(res.Table)
}

var comparison = map[records.Operator]string{
	records.OpEq:  "=",
	records.OpNe:  "<>",
	records.OpGt:  ">",
	records.OpGte: ">=",
	records.OpLt:  "<",
	records.OpLte: "<=",
}

// SelectBuilder accumulates tenant-scoped WHERE conditions for one resource
type SelectBuilder struct {
	res   *catalog.Resource
	where []string
	args  []any
}

// NewSelect starts a select on res restricted to the tenant
func NewSelect(res *catalog.Resource, tenantID uuid.UUID) *SelectBuilder {
	return &SelectBuilder{
		res:   res,
		where: []string{quoteIdent(catalog.TenantColumn) + " = ?"},
		args:  []any{tenantID},
	}
}

// Where adds one filter condition after checking the column is filterable
func (b *SelectBuilder) Where(c records.Condition) error {
	col, ok := b.res.FilterColumn(c.Column)
	if !ok {
		return shared.NewValidationError(c.Column, "filtro não permitido")
	}
	ident := quoteIdent(col.Name)

	op := c.Op
	if op == "" {
		op = records.OpEq
	}
	switch op {
	case records.OpContains:
		if col.Type != catalog.TypeText {
			return shared.NewValidationError(c.Column, "contains exige coluna de texto")
		}
		b.where = append(b.where, ident+" ILIKE ?")
		b.args = append(b.args, "%"+escapeLike(fmt.Sprint(c.Value))+"%")
		return nil

	case records.OpIn:
		values, ok := c.Value.([]any)
		if !ok || len(values) == 0 {
			return shared.NewValidationError(c.Column, "in exige uma lista de valores")
		}
		coerced := make([]any, 0, len(values))
		for _, v := range values {
			cv, err := b.res.CoerceFilter(col, v)
			if err != nil {
				return err
			}
			coerced = append(coerced, cv)
		}
		b.where = append(b.where, ident+" IN ?")
		b.args = append(b.args, coerced)
		return nil
	}

	sqlOp, ok := comparison[op]
	if !ok {
		return shared.NewValidationError(c.Column, fmt.Sprintf("operador %q inválido", op))
	}
	v, err := b.res.CoerceFilter(col, c.Value)
	if err != nil {
		return err
	}
	if v == nil {
		switch op {
		case records.OpEq:
			b.where = append(b.where, ident+" IS NULL")
			return nil
		case records.OpNe:
			b.where = append(b.where, ident+" IS NOT NULL")
			return nil
		}
		return shared.NewValidationError(c.Column, "valor obrigatório")
	}
	b.where = append(b.where, ident+" "+sqlOp+" ?")
	b.args = append(b.args, v)
	return nil
}

// Search adds a case-insensitive match over the resource's searchable columns
func (b *SelectBuilder) Search(term string) {
	term = strings.TrimSpace(term)
	cols := b.res.SearchColumns()
	if term == "" || len(cols) == 0 {
		return
	}
	pattern := "%" + escapeLike(term) + "%"
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = quoteIdent(c) + "::text ILIKE ?"
		b.args = append(b.args, pattern)
	}
	b.where = append(b.where, "("+strings.Join(parts, " OR ")+")")
}

// Between restricts the resource's date field to an inclusive range
func (b *SelectBuilder) Between(from, to string) error {
	if from == "" && to == "" {
		return nil
	}
	if b.res.DateField == "" {
		return shared.NewValidationError("from", "recurso sem campo de data")
	}
	col, _ := b.res.Column(b.res.DateField)
	for _, bound := range []struct {
		raw string
		op  string
	}{{from, ">="}, {to, "<="}} {
		if bound.raw == "" {
			continue
		}
		v, err := b.res.CoerceFilter(col, bound.raw)
		if err != nil {
			return err
		}
		b.where = append(b.where, quoteIdent(col.Name)+" "+bound.op+" ?")
		b.args = append(b.args, v)
	}
	return nil
}

func (b *SelectBuilder) whereClause() string {
	return " WHERE " + strings.Join(b.where, " AND ")
}

// Build renders the page query. Sorting is whitelisted and the key breaks ties.
func (b *SelectBuilder) Build(orderBy, orderDir string, limit, offset int) (string, []any) {
	sortCol := b.res.SortColumn(orderBy)
	dir := ValidateSortOrder(orderDir)

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(tableName(b.res))
	sb.WriteString(b.whereClause())
	fmt.Fprintf(&sb, " ORDER BY %s %s", quoteIdent(sortCol), dir)
	if sortCol != b.res.Key {
		fmt.Fprintf(&sb, ", %s %s", quoteIdent(b.res.Key), dir)
	}

	args := append([]any(nil), b.args...)
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	if offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, offset)
	}
	return sb.String(), args
}

// Count renders the total count of the filtered set
func (b *SelectBuilder) Count() (string, []any) {
	return "SELECT COUNT(*) FROM " + tableName(b.res) + b.whereClause(), append([]any(nil), b.args...)
}

// BuildGet selects one row by key
func BuildGet(res *catalog.Resource, tenantID uuid.UUID, key any) (string, []any) {
	return fmt.Sprintf("SELECT * FROM %s WHERE %s = ? AND %s = ? LIMIT 1",
			tableName(res), quoteIdent(catalog.TenantColumn), quoteIdent(res.Key)),
		[]any{tenantID, key}
}

func sortedColumns(values map[string]any) []string {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// BuildInsert renders INSERT ... VALUES(...) RETURNING * with tenant_id as the first column
func BuildInsert(res *catalog.Resource, tenantID uuid.UUID, values map[string]any) (string, []any, error) {
	cols := sortedColumns(values)
	idents := []string{quoteIdent(catalog.TenantColumn)}
	args := []any{tenantID}
	for _, c := range cols {
		if !res.HasColumn(c) || c == catalog.TenantColumn {
			return "", nil, fmt.Errorf("persistence: column %q is not catalogued for %s", c, res.FullName())
		}
		idents = append(idents, quoteIdent(c))
		args = append(args, values[c])
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(idents)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		tableName(res), strings.Join(idents, ", "), placeholders), args, nil
}

// BuildUpdate renders UPDATE ... SET col = ? ... RETURNING *. The resource's updated-at
// column is stamped with NOW() unless the payload sets it.
func BuildUpdate(res *catalog.Resource, tenantID uuid.UUID, key any, values map[string]any) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, shared.NewValidationError("payload", "nenhum campo para atualizar")
	}
	cols := sortedColumns(values)
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, c := range cols {
		if !res.HasColumn(c) || c == res.Key || c == catalog.TenantColumn {
			return "", nil, fmt.Errorf("persistence: column %q cannot be updated on %s", c, res.FullName())
		}
		sets = append(sets, quoteIdent(c)+" = ?")
		args = append(args, values[c])
	}
	if res.UpdatedAt != "" {
		if _, set := values[res.UpdatedAt]; !set {
			sets = append(sets, quoteIdent(res.UpdatedAt)+" = NOW()")
		}
	}
	args = append(args, tenantID, key)
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ? AND %s = ? RETURNING *",
		tableName(res), strings.Join(sets, ", "), quoteIdent(catalog.TenantColumn), quoteIdent(res.Key)), args, nil
}

// BuildDelete renders a tenant-scoped delete by key
func BuildDelete(res *catalog.Resource, tenantID uuid.UUID, key any) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?",
			tableName(res), quoteIdent(catalog.TenantColumn), quoteIdent(res.Key)),
		[]any{tenantID, key}
}

// BuildAggregate renders SELECT <dimension> AS key, <agg>(<measure>) AS value ... GROUP BY 1
func BuildAggregate(res *catalog.Resource, tenantID uuid.UUID, q records.AggregateQuery) (string, []any, error) {
	agg := q.Aggregation
	if agg == "" {
		agg = records.AggCount
	}
	if !agg.Valid() {
		return "", nil, shared.NewValidationError("aggregation", fmt.Sprintf("agregação %q inválida", q.Aggregation))
	}

	measure := "*"
	if q.Measure != "" && q.Measure != "*" {
		t, ok := res.ColumnType(q.Measure)
		if !ok {
			return "", nil, shared.NewValidationError("measure", fmt.Sprintf("coluna %q desconhecida", q.Measure))
		}
		if agg != records.AggCount && t != catalog.TypeNumeric && t != catalog.TypeInteger {
			return "", nil, shared.NewValidationError("measure", "a medida deve ser numérica")
		}
		measure = quoteIdent(q.Measure)
	} else if agg != records.AggCount {
		return "", nil, shared.NewValidationError("measure", "medida obrigatória para "+string(agg))
	}
	valueExpr := fmt.Sprintf("COALESCE(%s(%s), 0)", strings.ToUpper(string(agg)), measure)

	keyExpr := ""
	if q.Dimension != "" {
		t, ok := res.ColumnType(q.Dimension)
		if !ok {
			return "", nil, shared.NewValidationError("dimension", fmt.Sprintf("coluna %q desconhecida", q.Dimension))
		}
		if !q.Bucket.Valid() {
			return "", nil, shared.NewValidationError("bucket", fmt.Sprintf("agrupamento %q inválido", q.Bucket))
		}
		keyExpr = quoteIdent(q.Dimension)
		if q.Bucket != "" {
			if t != catalog.TypeDate && t != catalog.TypeTimestamp {
				return "", nil, shared.NewValidationError("bucket", "agrupamento por data exige coluna de data")
			}
			// bucket is whitelisted above, so inlining it is safe
			keyExpr = fmt.Sprintf("to_char(date_trunc('%s', %s), 'YYYY-MM-DD')", q.Bucket, keyExpr)
		}
	}

	b := NewSelect(res, tenantID)
	for _, c := range q.Conditions {
		if err := b.Where(c); err != nil {
			return "", nil, err
		}
	}
	if err := b.Between(q.From, q.To); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	if keyExpr == "" {
		fmt.Fprintf(&sb, "SELECT %s AS %s FROM %s%s", valueExpr, quoteIdent("value"), tableName(res), b.whereClause())
		return sb.String(), b.args, nil
	}

	fmt.Fprintf(&sb, "SELECT %s AS %s, %s AS %s FROM %s%s GROUP BY 1",
		keyExpr, quoteIdent("key"), valueExpr, quoteIdent("value"), tableName(res), b.whereClause())
	if q.Bucket != "" {
		sb.WriteString(" ORDER BY 1 ASC")
	} else {
		fmt.Fprintf(&sb, " ORDER BY 2 %s", ValidateSortOrder(q.OrderDir))
	}
	limit := q.Limit
	if limit <= 0 || limit > maxAggregateGroups {
		limit = maxAggregateGroups
	}
	sb.WriteString(" LIMIT ?")
	return sb.String(), append(b.args, limit), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
