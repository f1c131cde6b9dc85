package model

import "fmt"

// FilterOperator is the abstract predicate operator used by plans and the
// document store. Store-specific filter shapes live in the adapters.
type FilterOperator string

const (
	OpEqual        FilterOperator = "="
	OpContains     FilterOperator = "contains"
	OpLessThan     FilterOperator = "<"
	OpLessEqual    FilterOperator = "<="
	OpGreaterThan  FilterOperator = ">"
	OpGreaterEqual FilterOperator = ">="
)

// FieldFilter is a single {field, operator, value} predicate. A filter is a
// conjunction of these.
type FieldFilter struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    interface{}    `json:"value"`
}

// Validate checks the predicate shape without interpreting the value.
func (f FieldFilter) Validate() error {
	if f.Field == "" {
		return fmt.Errorf("filter field cannot be empty")
	}
	switch f.Operator {
	case OpEqual, OpContains, OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		return nil
	default:
		return fmt.Errorf("unsupported filter operator %q", f.Operator)
	}
}

// ValidateFilters checks every predicate in a conjunction.
func ValidateFilters(filters []FieldFilter) error {
	for i, f := range filters {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("filter %d: %w", i, err)
		}
	}
	return nil
}
