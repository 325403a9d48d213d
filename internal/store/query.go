package store

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortRecords orders records in place by field. A leading "-" sorts descending.
// Strings compare locale-aware with embedded numbers ordered numerically
// ("item2" < "item10"). Missing or nil values sort last ascending, first descending.
func SortRecords(records []Record, orderBy string) {
	field := strings.TrimSpace(orderBy)
	if field == "" || field == "-" {
		return
	}
	desc := strings.HasPrefix(field, "-")
	field = strings.TrimPrefix(field, "-")

	c := collate.New(language.Und, collate.Numeric)
	sort.SliceStable(records, func(i, j int) bool {
		r := compareValues(c, records[i][field], records[j][field])
		if desc {
			return r > 0
		}
		return r < 0
	})
}

// compareValues returns -1, 0 or 1. nil compares greater than any value.
func compareValues(c *collate.Collator, a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return 1
	}
	if b == nil {
		return -1
	}
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return c.CompareString(stringify(a), stringify(b))
}

// Matches reports whether every key/value pair of query equals the record's value.
// A string query value also matches a bool or number with the same text form,
// since filters arriving over HTTP are always strings.
func Matches(rec Record, query Record) bool {
	for k, want := range query {
		got, ok := rec[k]
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(got, want any) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	ws, wantStr := want.(string)
	gs, gotStr := got.(string)
	switch {
	case wantStr && !gotStr:
		return scalar(got) && stringify(got) == ws
	case gotStr && !wantStr:
		return scalar(want) && stringify(want) == gs
	}
	if fg, ok := toFloat(got); ok {
		if fw, ok := toFloat(want); ok {
			return fg == fw
		}
	}
	return false
}

func scalar(v any) bool {
	switch v.(type) {
	case bool, float64, float32, int, int64, int32:
		return true
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
