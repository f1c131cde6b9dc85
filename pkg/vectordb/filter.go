package vectordb

import (
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"github.com/tooldex/tooldex/pkg/model"
)

// translateFilters converts the abstract {field, op, value} conjunction
// into the qdrant filter shape (must clauses with match/range
// conditions). The abstract form is the only filter language the rest of
// the system speaks; the qdrant shape never leaves this package.
func translateFilters(filters []model.FieldFilter) (*qdrant.Filter, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	must := make([]*qdrant.Condition, 0, len(filters))
	for _, f := range filters {
		cond, err := translateFilter(f)
		if err != nil {
			return nil, err
		}
		must = append(must, cond)
	}

	return &qdrant.Filter{Must: must}, nil
}

func translateFilter(f model.FieldFilter) (*qdrant.Condition, error) {
	switch f.Operator {
	case model.OpEqual, model.OpContains:
		// Keyword match works for both scalar and list payload fields;
		// "contains" on a list field is a membership test.
		return matchCondition(f.Field, f.Value)
	case model.OpLessThan, model.OpLessEqual, model.OpGreaterThan, model.OpGreaterEqual:
		return rangeCondition(f.Field, f.Operator, f.Value)
	default:
		return nil, fmt.Errorf("unsupported filter operator %q", f.Operator)
	}
}

func matchCondition(key string, value interface{}) (*qdrant.Condition, error) {
	var match *qdrant.Match

	switch v := value.(type) {
	case string:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: v}}
	case bool:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: v}}
	case int:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}
	case int64:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: v}}
	case float64:
		// JSON numbers decode as float64; integral values match as
		// integers, anything else needs a range filter.
		if v == float64(int64(v)) {
			match = &qdrant.Match{MatchValue: &qdrant.Match_Integer{Integer: int64(v)}}
		} else {
			return nil, fmt.Errorf("cannot equality-match non-integral number %v on %q", v, key)
		}
	case []string:
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keywords{
			Keywords: &qdrant.RepeatedStrings{Strings: v},
		}}
	case []interface{}:
		strs := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list match on %q requires strings, got %T", key, item)
			}
			strs = append(strs, s)
		}
		match = &qdrant.Match{MatchValue: &qdrant.Match_Keywords{
			Keywords: &qdrant.RepeatedStrings{Strings: strs},
		}}
	default:
		return nil, fmt.Errorf("unsupported match value type %T for %q", value, key)
	}

	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: match,
			},
		},
	}, nil
}

func rangeCondition(key string, op model.FilterOperator, value interface{}) (*qdrant.Condition, error) {
	num, err := toFloat(value)
	if err != nil {
		return nil, fmt.Errorf("range filter on %q: %w", key, err)
	}

	r := &qdrant.Range{}
	switch op {
	case model.OpLessThan:
		r.Lt = &num
	case model.OpLessEqual:
		r.Lte = &num
	case model.OpGreaterThan:
		r.Gt = &num
	case model.OpGreaterEqual:
		r.Gte = &num
	}

	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Range: r,
			},
		},
	}, nil
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", value, value)
	}
}
