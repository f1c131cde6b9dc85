package catalog

import (
	"fmt"
	"strings"

	"github.com/tooldex/tooldex/pkg/model"
)

// columnFor maps abstract filter fields onto catalog columns. Plan fields
// use dotted names ("pricing.hasFreeTier"); the catalog flattens them.
var columnFor = map[string]string{
	"id":                  "id",
	"name":                "name",
	"description":         "description",
	"url":                 "url",
	"category":            "categories",
	"categories":          "categories",
	"functionality":       "functionality",
	"interface":           "interfaces",
	"interfaces":          "interfaces",
	"deployment":          "deployment",
	"language":            "languages",
	"languages":           "languages",
	"integration":         "integrations",
	"integrations":        "integrations",
	"pricing.hasFreeTier": "has_free_tier",
	"has_free_tier":       "has_free_tier",
}

// listColumns hold JSON-encoded string arrays; membership tests go
// through LIKE on the encoded form.
var listColumns = map[string]bool{
	"categories":    true,
	"functionality": true,
	"interfaces":    true,
	"deployment":    true,
	"languages":     true,
	"integrations":  true,
}

// buildWhere translates the abstract predicate conjunction into a WHERE
// clause with ?-placeholders.
func buildWhere(filters []model.FieldFilter) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(filters))
	args := make([]interface{}, 0, len(filters))

	for _, f := range filters {
		column, ok := columnFor[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown filter field %q", f.Field)
		}

		switch f.Operator {
		case model.OpEqual:
			if column == "has_free_tier" {
				clauses = append(clauses, column+" = ?")
				args = append(args, boolToInt(f.Value))
				continue
			}
			if listColumns[column] {
				// Equality on a list field means membership.
				clauses = append(clauses, column+" LIKE ?")
				args = append(args, jsonMemberPattern(f.Value))
				continue
			}
			clauses = append(clauses, column+" = ?")
			args = append(args, f.Value)

		case model.OpContains:
			if listColumns[column] {
				clauses = append(clauses, column+" LIKE ?")
				args = append(args, jsonMemberPattern(f.Value))
				continue
			}
			clauses = append(clauses, column+" LIKE ?")
			args = append(args, fmt.Sprintf("%%%v%%", f.Value))

		case model.OpLessThan, model.OpLessEqual, model.OpGreaterThan, model.OpGreaterEqual:
			clauses = append(clauses, fmt.Sprintf("%s %s ?", column, sqlOp(f.Operator)))
			args = append(args, f.Value)

		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Operator)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

func sqlOp(op model.FilterOperator) string {
	switch op {
	case model.OpLessEqual:
		return "<="
	case model.OpGreaterEqual:
		return ">="
	default:
		return string(op)
	}
}

func jsonMemberPattern(value interface{}) string {
	return fmt.Sprintf("%%\"%v\"%%", value)
}

func boolToInt(value interface{}) int {
	switch v := value.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case int:
		if v != 0 {
			return 1
		}
		return 0
	case float64:
		if v != 0 {
			return 1
		}
		return 0
	case string:
		if strings.EqualFold(v, "true") || v == "1" {
			return 1
		}
		return 0
	default:
		return 0
	}
}
