package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/erp/gestao/internal/domain/records"
	"github.com/erp/gestao/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRecordRepository executes catalog-driven SQL on the shared pool
type GormRecordRepository struct {
	db *gorm.DB
}

// NewGormRecordRepository creates a new GormRecordRepository
func NewGormRecordRepository(db *gorm.DB) *GormRecordRepository {
	return &GormRecordRepository{db: db}
}

var _ records.Repository = (*GormRecordRepository)(nil)

// WithTx returns a repository bound to an open transaction
func (r *GormRecordRepository) WithTx(tx *gorm.DB) *GormRecordRepository {
	return &GormRecordRepository{db: tx}
}

// WithTransaction runs fn in a transaction; GORM commits when fn returns nil and rolls back otherwise
func (r *GormRecordRepository) WithTransaction(ctx context.Context, fn func(tx records.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// List returns one page of rows plus the total of the filtered set
func (r *GormRecordRepository) List(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, q records.ListQuery) ([]records.Row, int64, error) {
	b := NewSelect(res, tenantID)
	for _, c := range q.Conditions {
		if err := b.Where(c); err != nil {
			return nil, 0, err
		}
	}
	b.Search(q.Search)

	db := r.db.WithContext(ctx)

	var total int64
	countSQL, countArgs := b.Count()
	if err := db.Raw(countSQL, countArgs...).Scan(&total).Error; err != nil {
		return nil, 0, translateError(err, "count "+res.FullName())
	}
	if total == 0 {
		return []records.Row{}, 0, nil
	}

	pageSQL, pageArgs := b.Build(q.OrderBy, q.OrderDir, q.Limit, q.Offset)
	var raw []map[string]any
	if err := db.Raw(pageSQL, pageArgs...).Scan(&raw).Error; err != nil {
		return nil, 0, translateError(err, "list "+res.FullName())
	}
	return normalizeRows(res, raw), total, nil
}

// Get returns one row by key
func (r *GormRecordRepository) Get(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, key any) (records.Row, error) {
	query, args := BuildGet(res, tenantID, key)
	return r.one(ctx, res, "get", query, args)
}

// Insert writes a row and returns it as stored, including database defaults
func (r *GormRecordRepository) Insert(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, values map[string]any) (records.Row, error) {
	query, args, err := BuildInsert(res, tenantID, values)
	if err != nil {
		return nil, err
	}
	return r.one(ctx, res, "insert", query, args)
}

// Update changes the given columns and returns the updated row. A missing row is ErrNotFound.
func (r *GormRecordRepository) Update(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, key any, values map[string]any) (records.Row, error) {
	query, args, err := BuildUpdate(res, tenantID, key, values)
	if err != nil {
		return nil, err
	}
	return r.one(ctx, res, "update", query, args)
}

// Delete removes a row by key
func (r *GormRecordRepository) Delete(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, key any) error {
	query, args := BuildDelete(res, tenantID, key)
	result := r.db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return translateError(result.Error, "delete "+res.FullName())
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Aggregate computes a measure, grouped by the query's dimension when present
func (r *GormRecordRepository) Aggregate(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, q records.AggregateQuery) ([]records.AggregateRow, error) {
	query, args, err := BuildAggregate(res, tenantID, q)
	if err != nil {
		return nil, err
	}

	var raw []map[string]any
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&raw).Error; err != nil {
		return nil, translateError(err, "aggregate "+res.FullName())
	}

	out := make([]records.AggregateRow, 0, len(raw))
	for _, m := range raw {
		value, err := catalog.ParseDecimal(normalizeValue(m["value"]))
		if err != nil {
			continue
		}
		out = append(out, records.AggregateRow{Key: normalizeValue(m["key"]), Value: value})
	}
	return out, nil
}

func (r *GormRecordRepository) one(ctx context.Context, res *catalog.Resource, op, query string, args []any) (records.Row, error) {
	var raw []map[string]any
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&raw).Error; err != nil {
		return nil, translateError(err, op+" "+res.FullName())
	}
	if len(raw) == 0 {
		return nil, shared.ErrNotFound
	}
	return normalizeRow(res, raw[0]), nil
}

func normalizeRows(res *catalog.Resource, raw []map[string]any) []records.Row {
	out := make([]records.Row, len(raw))
	for i, m := range raw {
		out[i] = normalizeRow(res, m)
	}
	return out
}

// normalizeRow converts driver values into JSON-friendly values typed by the catalog:
// numerics become decimals, json columns raw JSON and dates YYYY-MM-DD strings.
func normalizeRow(res *catalog.Resource, raw map[string]any) records.Row {
	row := make(records.Row, len(raw))
	for k, v := range raw {
		v = normalizeValue(v)
		if v == nil {
			row[k] = nil
			continue
		}
		if t, ok := res.ColumnType(k); ok {
			switch t {
			case catalog.TypeNumeric:
				if d, err := catalog.ParseDecimal(v); err == nil {
					v = d
				}
			case catalog.TypeJSON:
				if s, ok := v.(string); ok && json.Valid([]byte(s)) {
					v = json.RawMessage(s)
				}
			case catalog.TypeDate:
				if tm, ok := v.(time.Time); ok {
					v = tm.Format(time.DateOnly)
				}
			}
		}
		row[k] = v
	}
	return row
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case [16]byte:
		return uuid.UUID(x).String()
	}
	return v
}
