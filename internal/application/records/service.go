package records

import (
	"context"
	"fmt"

	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/records"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/erp/gestao/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Observer is notified of record mutations, e.g. for metrics
type Observer interface {
	RecordMutated(ctx context.Context, resource, op string)
}

// Service exposes catalogued resources as generic CRUD operations
type Service struct {
	registry *catalog.Registry
	repo     records.Repository
	observer Observer
}

// NewService creates a new record Service
func NewService(registry *catalog.Registry, repo records.Repository) *Service {
	return &Service{registry: registry, repo: repo}
}

// WithObserver sets the mutation observer
func (s *Service) WithObserver(o Observer) *Service {
	s.observer = o
	return s
}

// Registry returns the catalog the service validates against
func (s *Service) Registry() *catalog.Registry {
	return s.registry
}

// Resource looks up a catalogued resource
func (s *Service) Resource(module, name string) (*catalog.Resource, error) {
	return s.registry.Lookup(module, name)
}

// List returns a page of rows. Page size defaults to 20 and is capped at 200.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, module, name string, filter shared.Filter) (shared.Paginated[records.Row], error) {
	res, err := s.registry.Lookup(module, name)
	if err != nil {
		return shared.Paginated[records.Row]{}, err
	}

	conditions, err := ConditionsFromFilters(filter.Filters)
	if err != nil {
		return shared.Paginated[records.Row]{}, err
	}

	normalizePage(&filter)
	rows, total, err := s.repo.List(ctx, tenantID, res, records.ListQuery{
		Conditions: conditions,
		Search:     filter.Search,
		OrderBy:    filter.OrderBy,
		OrderDir:   filter.OrderDir,
		Limit:      filter.PageSize,
		Offset:     filter.Offset(),
	})
	if err != nil {
		return shared.Paginated[records.Row]{}, err
	}
	return shared.NewPaginated(rows, total, filter.Page, filter.PageSize), nil
}

func normalizePage(f *shared.Filter) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// Get returns one row by its key
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, module, name, id string) (records.Row, error) {
	res, key, err := s.resolveKey(module, name, id)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, tenantID, res, key)
}

// Create validates and inserts a row. Resources with line items accept them under the
// line field (e.g. "itens"); header and lines are written in one transaction and the
// header total is recomputed from the lines.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, module, name string, payload map[string]any) (records.Row, error) {
	res, err := s.registry.Lookup(module, name)
	if err != nil {
		return nil, err
	}

	header := make(map[string]any, len(payload))
	for k, v := range payload {
		header[k] = v
	}

	var rawLines []any
	if res.Lines != nil {
		if v, ok := header[res.Lines.Field]; ok {
			delete(header, res.Lines.Field)
			if rawLines, ok = v.([]any); !ok {
				return nil, shared.NewValidationError(res.Lines.Field, "lista de itens esperada")
			}
		}
	}

	values, err := res.ValidateCreate(header)
	if err != nil {
		return nil, err
	}

	if len(rawLines) == 0 {
		row, err := s.repo.Insert(ctx, tenantID, res, values)
		if err != nil {
			return nil, err
		}
		s.mutated(ctx, res, "create", row)
		return row, nil
	}

	lineRes := s.registry.LineResource(res)
	lines, total, err := prepareLines(res, lineRes, rawLines)
	if err != nil {
		return nil, err
	}
	if res.TotalField != "" {
		values[res.TotalField] = total
	}

	var created records.Row
	err = s.repo.WithTransaction(ctx, func(tx records.Repository) error {
		row, err := tx.Insert(ctx, tenantID, res, values)
		if err != nil {
			return err
		}
		key, ok := row[res.Key]
		if !ok {
			return fmt.Errorf("insert %s returned no %s", res.FullName(), res.Key)
		}
		items := make([]records.Row, 0, len(lines))
		for _, line := range lines {
			line[res.Lines.ForeignKey] = key
			item, err := tx.Insert(ctx, tenantID, lineRes, line)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		row[res.Lines.Field] = items
		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.mutated(ctx, res, "create", created, zap.Int("itens", len(lines)))
	return created, nil
}

// prepareLines validates every line and fills the line amount from quantity × price when absent.
// It returns the lines and the sum of their amounts.
func prepareLines(header, lineRes *catalog.Resource, rawLines []any) ([]map[string]any, decimal.Decimal, error) {
	if lineRes == nil {
		return nil, decimal.Zero, fmt.Errorf("line resource of %s is not registered", header.FullName())
	}
	spec := header.Lines
	verr := &shared.ValidationError{}
	total := decimal.Zero
	lines := make([]map[string]any, 0, len(rawLines))

	for i, raw := range rawLines {
		prefix := fmt.Sprintf("%s[%d]", spec.Field, i)
		m, ok := raw.(map[string]any)
		if !ok {
			verr.Add(prefix, "item inválido")
			continue
		}
		delete(m, spec.ForeignKey)
		line, err := lineRes.ValidateCreate(m)
		if err != nil {
			if fe, ok := err.(*shared.ValidationError); ok {
				for _, f := range fe.Fields {
					verr.Add(prefix+"."+f.Field, f.Message)
				}
				continue
			}
			return nil, decimal.Zero, err
		}

		if spec.AmountField != "" {
			amount, ok := line[spec.AmountField].(decimal.Decimal)
			if !ok {
				qty, qok := line[spec.QuantityField].(decimal.Decimal)
				price, pok := line[spec.PriceField].(decimal.Decimal)
				if qok && pok {
					amount = qty.Mul(price).Round(2)
					line[spec.AmountField] = amount
				}
			}
			total = total.Add(amount)
		}
		lines = append(lines, line)
	}

	if err := verr.Err(); err != nil {
		return nil, decimal.Zero, err
	}
	return lines, total, nil
}

// Update applies a partial update; only updatable columns are accepted
func (s *Service) Update(ctx context.Context, tenantID uuid.UUID, module, name, id string, payload map[string]any) (records.Row, error) {
	res, key, err := s.resolveKey(module, name, id)
	if err != nil {
		return nil, err
	}
	values, err := res.ValidateUpdate(payload)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.Update(ctx, tenantID, res, key, values)
	if err != nil {
		return nil, err
	}
	s.mutated(ctx, res, "update", row, zap.Int("campos", len(values)))
	return row, nil
}

// Delete removes one row. Line items are expected to cascade in the database.
func (s *Service) Delete(ctx context.Context, tenantID uuid.UUID, module, name, id string) error {
	res, key, err := s.resolveKey(module, name, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, res, key); err != nil {
		return err
	}
	s.mutated(ctx, res, "delete", records.Row{res.Key: key})
	return nil
}

// Aggregate computes a measure over the resource, optionally grouped
func (s *Service) Aggregate(ctx context.Context, tenantID uuid.UUID, module, name string, q records.AggregateQuery) ([]records.AggregateRow, error) {
	res, err := s.registry.Lookup(module, name)
	if err != nil {
		return nil, err
	}
	return s.repo.Aggregate(ctx, tenantID, res, q)
}

func (s *Service) resolveKey(module, name, id string) (*catalog.Resource, any, error) {
	res, err := s.registry.Lookup(module, name)
	if err != nil {
		return nil, nil, err
	}
	key, err := res.CoerceKey(id)
	if err != nil {
		return nil, nil, err
	}
	return res, key, nil
}

func (s *Service) mutated(ctx context.Context, res *catalog.Resource, op string, row records.Row, fields ...zap.Field) {
	logger.L(ctx).Info("record "+op+"d",
		append([]zap.Field{
			zap.String("resource", res.FullName()),
			zap.Any("key", row[res.Key]),
		}, fields...)...,
	)
	if s.observer != nil {
		s.observer.RecordMutated(ctx, res.FullName(), op)
	}
}
