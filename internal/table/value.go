package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leapstack-labs/mktwh/pkg/core"
)

// TimestampLayout is the output layout for Timestamp columns.
const TimestampLayout = "2006-01-02 15:04:05"

// moneyPlaces is the number of decimals money is rendered with.
const moneyPlaces = 2

// ParseMoney parses a decimal amount such as "120.50", "-10" or "1.004"
// exactly. Sub-cent digits are kept.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid money value %q", s)
	}
	return d, nil
}

// RoundMoney rounds a derived amount to whole cents, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// FormatMoney renders an amount with two decimals, or with every
// significant decimal when it carries sub-cent digits. It never rounds.
func FormatMoney(d decimal.Decimal) string {
	if d.Equal(d.Round(moneyPlaces)) {
		return d.StringFixed(moneyPlaces)
	}
	return d.String()
}

// nullTokens are raw cell values read as null.
var nullTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
}

// IsNullToken reports whether a raw cell value represents null.
func IsNullToken(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// datetimeLayouts are tried in order when parsing Date and Timestamp cells.
var datetimeLayouts = []string{
	core.DateLayout,
	TimestampLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"01/02/2006",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
}

// ParseTime parses a date or datetime cell. Zoned values keep their
// wall-clock time and offset, so the derived date is the source's date.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date/time %q", s)
}

// Parse converts a raw cell into a typed value. Null tokens yield nil.
func Parse(k Kind, raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if k != String && IsNullToken(s) {
		return nil, nil
	}
	switch k {
	case String:
		if s == "" {
			return nil, nil
		}
		return s, nil
	case Int:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		return int64(f), nil
	case Float:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return f, nil
	case Money:
		return ParseMoney(s)
	case Date:
		t, err := ParseTime(s)
		if err != nil {
			return nil, err
		}
		return core.Day(t), nil
	case Timestamp:
		return ParseTime(s)
	case Bool:
		return parseBool(s)
	default:
		return nil, fmt.Errorf("unsupported kind %s", k)
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1", "1.0":
		return true, nil
	case "false", "f", "no", "n", "0", "0.0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// Format renders a typed value for CSV output. nil renders as an empty cell.
func Format(k Kind, v any) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if k == Money {
			return FormatMoney(decimal.NewFromFloat(x))
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case decimal.Decimal:
		return FormatMoney(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if k == Timestamp {
			return x.Format(TimestampLayout)
		}
		return x.Format(core.DateLayout)
	default:
		return fmt.Sprint(x)
	}
}

// Compare orders two values of the same kind. Nulls sort first.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case string:
		return strings.Compare(x, b.(string))
	case int64:
		return cmpOrdered(x, b.(int64))
	case float64:
		return cmpOrdered(x, b.(float64))
	case decimal.Decimal:
		return x.Cmp(b.(decimal.Decimal))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
