// Package records describes generic tenant-scoped rows of catalogued resources and the
// queries the application runs against them.
package records

import (
	"context"
	"strings"

	"github.com/erp/gestao/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Row is one record as returned by the database, keyed by column name
type Row map[string]any

// Operator is a comparison used in a filter condition
type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
	OpIn       Operator = "in"
)

// ParseOperator accepts the operator names used in query strings and tool calls
func ParseOperator(s string) (Operator, bool) {
	switch op := Operator(strings.ToLower(strings.TrimSpace(s))); op {
	case "", "=":
		return OpEq, true
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpContains, OpIn:
		return op, true
	}
	return "", false
}

// Condition filters one column
type Condition struct {
	Column string   `json:"column"`
	Op     Operator `json:"op"`
	Value  any      `json:"value"`
}

// ListQuery selects a page of rows
type ListQuery struct {
	Conditions []Condition
	Search     string
	OrderBy    string
	OrderDir   string
	Limit      int
	Offset     int
}

// Aggregation is the SQL aggregate applied to a measure
type Aggregation string

const (
	AggCount Aggregation = "count"
	AggSum   Aggregation = "sum"
	AggAvg   Aggregation = "avg"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
)

// Valid reports whether a is a supported aggregate
func (a Aggregation) Valid() bool {
	switch a {
	case AggCount, AggSum, AggAvg, AggMin, AggMax:
		return true
	}
	return false
}

// DateBucket groups a date dimension
type DateBucket string

const (
	BucketDay   DateBucket = "day"
	BucketWeek  DateBucket = "week"
	BucketMonth DateBucket = "month"
	BucketYear  DateBucket = "year"
)

// Valid reports whether b is empty or a supported bucket
func (b DateBucket) Valid() bool {
	switch b {
	case "", BucketDay, BucketWeek, BucketMonth, BucketYear:
		return true
	}
	return false
}

// AggregateQuery computes one measure, optionally grouped by a dimension.
// From/To restrict the resource's date field.
type AggregateQuery struct {
	Measure     string
	Aggregation Aggregation
	Dimension   string
	Bucket      DateBucket
	Conditions  []Condition
	From        string
	To          string
	Limit       int
	OrderDir    string
}

// AggregateRow is one group of an aggregate result; Key is nil without a dimension
type AggregateRow struct {
	Key   any             `json:"key"`
	Value decimal.Decimal `json:"value"`
}

// Repository runs the generated statements. Every method is scoped to the tenant.
type Repository interface {
	List(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, q ListQuery) ([]Row, int64, error)
	Get(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, key any) (Row, error)
	Insert(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, values map[string]any) (Row, error)
	Update(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, key any, values map[string]any) (Row, error)
	Delete(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, key any) error
	Aggregate(ctx context.Context, tenantID uuid.UUID, res *catalog.Resource, q AggregateQuery) ([]AggregateRow, error)
	// WithTransaction runs fn inside BEGIN/COMMIT, rolling back when fn returns an error
	WithTransaction(ctx context.Context, fn func(tx Repository) error) error
}
