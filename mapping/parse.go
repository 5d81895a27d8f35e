/*
parse.go - Loose value coercion for raw source cells

PURPOSE:
  Raw uploads arrive as JSON, so numbers decode as float64 and flags come
  in as 0/1, booleans, or strings depending on the export. These helpers
  coerce a cell into the canonical type, mapping anything unparseable to
  the zero value instead of failing the row.
*/
package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-audit/canonical"
)

// coerceID reads an integer identifier from a raw cell. Missing or
// unparseable values yield zero.
func coerceID(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// coerceBool accepts 0/1 numerics, booleans, and "true"/"false"/"0"/"1"
// strings.
func coerceBool(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		return s == "1" || s == "true" || s == "t" || s == "yes"
	default:
		return false
	}
}

// coerceBoolDefault reads a flag column that may be absent entirely,
// substituting the default when the key is missing.
func coerceBoolDefault(row Row, col string, def bool) bool {
	v, ok := row[col]
	if !ok || v == nil {
		return def
	}
	return coerceBool(v)
}

// coerceString reads an optional text cell.
func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// coerceDecimal reads a monetary amount. Unparseable values yield zero.
func coerceDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case float64:
		return decimal.NewFromFloat(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// coerceYYYYMMDD reads a date stored as a YYYYMMDD integer (possibly
// float-typed after JSON decoding, possibly a string). Unparseable values
// coerce to the zero Date, marking the field missing.
func coerceYYYYMMDD(v any) canonical.Date {
	var s string
	switch x := v.(type) {
	case nil:
		return canonical.Date{}
	case float64:
		s = fmt.Sprintf("%d", int64(x))
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case string:
		s = strings.TrimSpace(x)
	default:
		return canonical.Date{}
	}
	if s == "" || s == "0" {
		return canonical.Date{}
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		// Some exports use ISO dates instead of packed integers.
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return canonical.Date{}
		}
	}
	return canonical.NewDate(t.Year(), t.Month(), t.Day())
}
