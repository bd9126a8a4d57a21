// Package query evaluates equality filters and sort orders against decoded
// BSON documents. It is shared by the embedded engine and the in-memory test store.
package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-users/pkg/domain"
)

// MatchesFilter reports whether doc satisfies every constraint in filter.
// An empty filter matches everything.
func MatchesFilter(doc bson.M, filter domain.Filter) bool {
	for field, expectedValue := range filter {
		actualValue, exists := doc[field]
		if !exists {
			return false
		}

		if !ValuesMatch(actualValue, expectedValue) {
			return false
		}
	}
	return true
}

// ValuesMatch compares two values for equality. Numbers compare by value
// regardless of their Go type; strings compare case-sensitively.
func ValuesMatch(actual, expected interface{}) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	if actualNum, ok1 := ToFloat64(actual); ok1 {
		if expectedNum, ok2 := ToFloat64(expected); ok2 {
			return actualNum == expectedNum
		}
		return false
	}

	switch a := actual.(type) {
	case string:
		e, ok := expected.(string)
		return ok && a == e
	case bool:
		e, ok := expected.(bool)
		return ok && a == e
	case primitive.ObjectID:
		e, ok := expected.(primitive.ObjectID)
		return ok && a == e
	}

	return false
}

// ToFloat64 converts the numeric types produced by BSON decoding and Go literals to float64.
func ToFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Compare orders two field values: -1, 0 or 1. Missing values sort first,
// then numbers, strings, booleans; values of other types compare equal.
func Compare(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case rankNumber:
		fa, _ := ToFloat64(a)
		fb, _ := ToFloat64(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		if ba != bb {
			if !ba {
				return -1
			}
			return 1
		}
	}
	return 0
}

const (
	rankMissing = iota
	rankNumber
	rankString
	rankBool
	rankOther
)

func typeRank(v interface{}) int {
	if v == nil {
		return rankMissing
	}
	if _, ok := ToFloat64(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case string:
		return rankString
	case bool:
		return rankBool
	}
	return rankOther
}

// Less reports whether a orders before b under the given sort fields.
// Ties on every field report false so stable sorts keep the natural order.
func Less(a, b bson.M, order []domain.SortField) bool {
	for _, f := range order {
		c := Compare(a[f.Field], b[f.Field])
		if c == 0 {
			continue
		}
		if f.Descending {
			return c > 0
		}
		return c < 0
	}
	return false
}
