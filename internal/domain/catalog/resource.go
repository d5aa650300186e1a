package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/erp/gestao/internal/domain/shared"
)

// ColumnType is the storage type of a column, used to coerce incoming values
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInteger   ColumnType = "integer"
	TypeNumeric   ColumnType = "numeric"
	TypeBoolean   ColumnType = "boolean"
	TypeDate      ColumnType = "date"
	TypeTimestamp ColumnType = "timestamp"
	TypeUUID      ColumnType = "uuid"
	TypeJSON      ColumnType = "json"
)

// TenantColumn is present on every catalogued table and is never part of a payload
const TenantColumn = "tenant_id"

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsIdentifier reports whether s is safe to use as a quoted SQL identifier
func IsIdentifier(s string) bool {
	return len(s) <= 63 && identifierPattern.MatchString(s)
}

// Column describes one whitelisted column of a resource
type Column struct {
	Name        string     `json:"name"`
	Label       string     `json:"label"`
	Type        ColumnType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Updatable   bool       `json:"updatable"`
	ReadOnly    bool       `json:"read_only,omitempty"`
	Searchable  bool       `json:"searchable,omitempty"`
	Sortable    bool       `json:"sortable,omitempty"`
	Filterable  bool       `json:"filterable,omitempty"`
	Money       bool       `json:"money,omitempty"`
	Enum        []string   `json:"enum,omitempty"`
	Default     any        `json:"default,omitempty"`
	Description string     `json:"description,omitempty"`
}

// LineSpec links a header resource to its line items, created together in one transaction
type LineSpec struct {
	Resource      string `json:"resource"`
	ForeignKey    string `json:"foreign_key"`
	Field         string `json:"field"`
	AmountField   string `json:"amount_field,omitempty"`
	QuantityField string `json:"quantity_field,omitempty"`
	PriceField    string `json:"price_field,omitempty"`
}

// Resource describes a table the application may read and mutate
type Resource struct {
	Module      string     `json:"module"`
	Name        string     `json:"name"`
	Label       string     `json:"label"`
	Schema      string     `json:"schema"`
	Table       string     `json:"table"`
	Key         string     `json:"key"`
	KeyType     ColumnType `json:"key_type"`
	Columns     []Column   `json:"columns"`
	DefaultSort string     `json:"default_sort"`
	DateField   string     `json:"date_field,omitempty"`
	TotalField  string     `json:"total_field,omitempty"`
	UpdatedAt   string     `json:"updated_at_column,omitempty"`
	Lines       *LineSpec  `json:"lines,omitempty"`
	Description string     `json:"description,omitempty"`
}

// FullName is the module-qualified resource name, e.g. "vendas.pedidos"
func (r *Resource) FullName() string {
	return r.Module + "." + r.Name
}

// Column returns the named column
func (r *Resource) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether name is the key or a declared column
func (r *Resource) HasColumn(name string) bool {
	if name == r.Key {
		return true
	}
	_, ok := r.Column(name)
	return ok
}

// ColumnType returns the type of a column or of the key
func (r *Resource) ColumnType(name string) (ColumnType, bool) {
	if name == r.Key {
		return r.KeyType, true
	}
	c, ok := r.Column(name)
	return c.Type, ok
}

// SearchColumns returns the columns matched by free-text search
func (r *Resource) SearchColumns() []string {
	var out []string
	for _, c := range r.Columns {
		if c.Searchable {
			out = append(out, c.Name)
		}
	}
	return out
}

// MoneyColumns returns the set of columns holding currency amounts
func (r *Resource) MoneyColumns() map[string]bool {
	out := make(map[string]bool)
	for _, c := range r.Columns {
		if c.Money {
			out[c.Name] = true
		}
	}
	return out
}

// SortColumn whitelists a requested sort column, falling back to DefaultSort
func (r *Resource) SortColumn(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == r.Key && requested != "" {
		return requested
	}
	if c, ok := r.Column(requested); ok && c.Sortable {
		return c.Name
	}
	return r.DefaultSort
}

// FilterColumn returns the column when it may be used in an equality filter
func (r *Resource) FilterColumn(name string) (Column, bool) {
	if name == r.Key {
		return Column{Name: r.Key, Type: r.KeyType}, true
	}
	c, ok := r.Column(name)
	if !ok || !c.Filterable {
		return Column{}, false
	}
	return c, true
}

// CoerceKey parses a path key into the key column's type
func (r *Resource) CoerceKey(raw string) (any, error) {
	v, err := coerce(Column{Name: r.Key, Type: r.KeyType}, strings.TrimSpace(raw))
	if err != nil || v == nil {
		return nil, shared.NewValidationError(r.Key, "identificador inválido")
	}
	return v, nil
}

// CoerceFilter converts a filter value into the column's type
func (r *Resource) CoerceFilter(col Column, raw any) (any, error) {
	v, err := coerce(col, raw)
	if err != nil {
		return nil, shared.NewValidationError(col.Name, err.Error())
	}
	return v, nil
}

// ValidateCreate checks an insert payload against the whitelist and returns the coerced values.
// Unknown and read-only fields are rejected, required columns must be present and non-empty,
// and defaults fill columns the payload left out.
func (r *Resource) ValidateCreate(payload map[string]any) (map[string]any, error) {
	verr := &shared.ValidationError{}
	out := make(map[string]any, len(payload))

	for field := range payload {
		c, ok := r.Column(field)
		if !ok || c.ReadOnly {
			verr.Add(field, "campo não permitido")
		}
	}

	for _, c := range r.Columns {
		if c.ReadOnly {
			continue
		}
		raw, present := payload[c.Name]
		v, err := coerce(c, raw)
		if err != nil {
			verr.Add(c.Name, err.Error())
			continue
		}
		if v == nil && c.Default != nil {
			v = c.Default
			present = true
		}
		if v == nil && c.Required {
			verr.Add(c.Name, "campo obrigatório")
			continue
		}
		if present {
			out[c.Name] = v
		}
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateUpdate checks a partial update payload. Only updatable columns are accepted and
// at least one field must be present.
func (r *Resource) ValidateUpdate(payload map[string]any) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, shared.NewValidationError("payload", "nenhum campo para atualizar")
	}

	verr := &shared.ValidationError{}
	out := make(map[string]any, len(payload))
	for field, raw := range payload {
		c, ok := r.Column(field)
		switch {
		case !ok || c.ReadOnly:
			verr.Add(field, "campo desconhecido")
			continue
		case !c.Updatable:
			verr.Add(field, "campo não pode ser alterado")
			continue
		}
		v, err := coerce(c, raw)
		if err != nil {
			verr.Add(field, err.Error())
			continue
		}
		if v == nil && c.Required {
			verr.Add(field, "campo obrigatório")
			continue
		}
		out[field] = v
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// validate checks the definition itself; every identifier ends up quoted in SQL
func (r *Resource) validate() error {
	for _, id := range []string{r.Module, r.Name, r.Schema, r.Table, r.Key} {
		if !IsIdentifier(id) {
			return fmt.Errorf("catalog: %s: invalid identifier %q", r.FullName(), id)
		}
	}
	switch r.KeyType {
	case TypeUUID, TypeInteger, TypeText:
	default:
		return fmt.Errorf("catalog: %s: unsupported key type %q", r.FullName(), r.KeyType)
	}

	seen := map[string]bool{}
	for _, c := range r.Columns {
		if !IsIdentifier(c.Name) {
			return fmt.Errorf("catalog: %s: invalid column %q", r.FullName(), c.Name)
		}
		if c.Name == TenantColumn || c.Name == r.Key {
			return fmt.Errorf("catalog: %s: column %q is implicit", r.FullName(), c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("catalog: %s: duplicate column %q", r.FullName(), c.Name)
		}
		seen[c.Name] = true
		if len(c.Enum) > 0 && c.Type != TypeText {
			return fmt.Errorf("catalog: %s.%s: enum requires a text column", r.FullName(), c.Name)
		}
	}

	if r.DefaultSort == "" {
		r.DefaultSort = r.Key
	}
	if r.DefaultSort != r.Key && !seen[r.DefaultSort] {
		return fmt.Errorf("catalog: %s: default sort %q is not a column", r.FullName(), r.DefaultSort)
	}
	for _, ref := range []string{r.DateField, r.TotalField, r.UpdatedAt} {
		if ref != "" && !seen[ref] {
			return fmt.Errorf("catalog: %s: unknown column %q", r.FullName(), ref)
		}
	}
	if r.TotalField != "" {
		if c, _ := r.Column(r.TotalField); c.Type != TypeNumeric {
			return fmt.Errorf("catalog: %s: total field must be numeric", r.FullName())
		}
	}
	return nil
}
