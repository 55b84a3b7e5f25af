package types

import (
	"fmt"
	"strings"

	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
)

// arity is the minimum number of values each operator reads.
var arity = map[CommonFilterOperator]int{
	CommonFilterOperatorEq:        1,
	CommonFilterOperatorNotEq:     1,
	CommonFilterOperatorLt:        1,
	CommonFilterOperatorLte:       1,
	CommonFilterOperatorGt:        1,
	CommonFilterOperatorGte:       1,
	CommonFilterOperatorDateRange: 2,
	CommonFilterOperatorRange:     2,
	CommonFilterOperatorIn:        1,
}

// CommonFilter is a client-supplied condition on one column. Field is
// written into SQL verbatim, so callers must Validate it against their own
// column list first.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// Validate checks the operator, its value count and that Field is one of
// columns.
func (f *CommonFilter) Validate(columns map[string]bool) error {
	if f == nil {
		return fmt.Errorf("empty filter")
	}
	if !columns[f.Field] {
		return fmt.Errorf("filter field %q is not supported", f.Field)
	}
	n, ok := arity[f.Operator]
	if !ok {
		return fmt.Errorf("filter operator %q is not supported", f.Operator)
	}
	if len(f.Values) < n {
		return fmt.Errorf("filter %s %s needs %d value(s)", f.Field, f.Operator, n)
	}
	return nil
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Values) == 0 {
		return
	}

	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		if strings.Contains(f.Field, "->") {
			// JSON path, not a quotable column
			clause.Expr{SQL: fmt.Sprintf("%s = ?", f.Field), Vars: []interface{}{value}}.Build(builder)
		} else {
			clause.Eq{Column: f.Field, Value: value}.Build(builder)
		}
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorDateRange:
		// [from, to) on calendar dates, values as YYYY-MM-DD
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lt{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: f.Field, Values: f.Values}.Build(builder)
	default:
		return
	}
}
