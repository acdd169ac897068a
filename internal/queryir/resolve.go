package queryir

import (
	"regexp"
	"strconv"
	"time"

	"github.com/softkave/fimidx-sub001/internal/ir"
)

// durationPattern matches relative durations: digits plus a day, hour,
// minute, or second unit.
var durationPattern = regexp.MustCompile(`^(\d+)([dhms])$`)

// isoLayouts are tried in order when parsing absolute timestamps.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDuration parses a relative duration such as "7d" or "30m".
func ParseDuration(s string) (time.Duration, bool) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	var unit time.Duration
	switch m[2] {
	case "d":
		unit = 24 * time.Hour
	case "h":
		unit = time.Hour
	case "m":
		unit = time.Minute
	default:
		unit = time.Second
	}
	if n > int64(1<<62)/int64(unit) {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// ParseISO parses an absolute ISO-8601 timestamp.
func ParseISO(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Bound says which side of a range an operand sits on.
type Bound int

const (
	BoundNone  Bound = iota
	BoundLower       // gt, gte, between min
	BoundUpper       // lt, lte, between max
)

// boundOf returns the range side of a single-operand operator.
func boundOf(op Op) Bound {
	switch op {
	case OpGt, OpGte:
		return BoundLower
	case OpLt, OpLte:
		return BoundUpper
	}
	return BoundNone
}

// ResolveDuration applies a duration to ref for the given side.
// Lower bounds move forward from ref; upper bounds move back.
func ResolveDuration(ref time.Time, d time.Duration, b Bound) time.Time {
	if b == BoundUpper {
		return ref.Add(-d)
	}
	return ref.Add(d)
}

// Operand is a resolved comparison value. When IsTime is set, Time holds
// the value. Structural date fields compare it natively; payload paths
// compare it with the stored string parsed as an instant, so any ISO-8601
// spelling of the same instant is equal to it.
type Operand struct {
	Value  ir.IRValue
	Time   time.Time
	IsTime bool
}

// Literal wraps a value that needs no resolution.
func Literal(v ir.IRValue) Operand {
	if v == nil {
		v = ir.IRNull{}
	}
	return Operand{Value: v}
}

// TimeOperand wraps a timestamp, truncated to stored precision.
func TimeOperand(t time.Time) Operand {
	t = t.UTC().Truncate(time.Millisecond)
	return Operand{Value: ir.IRString(ir.FormatTime(t)), Time: t, IsTime: true}
}

// resolvePayload resolves an operand compared against a payload path.
//
// Range operands are tried as a relative duration, an ISO-8601 timestamp,
// then a numeric string, before falling back to the literal. Equality
// operands are always literal.
func resolvePayload(v ir.IRValue, b Bound, ref time.Time) Operand {
	s, ok := v.(ir.IRString)
	if !ok || b == BoundNone {
		return Literal(v)
	}
	if d, ok := ParseDuration(string(s)); ok {
		return TimeOperand(ResolveDuration(ref, d, b))
	}
	if t, ok := ParseISO(string(s)); ok {
		return TimeOperand(t)
	}
	if f, err := strconv.ParseFloat(string(s), 64); err == nil {
		return Literal(ir.IRNumber(f))
	}
	return Literal(v)
}

// resolveDate coerces an operand compared against a structural date field.
// Numbers are epoch milliseconds. Strings may be durations (range operators
// only), ISO-8601 timestamps, or numeric epoch milliseconds. Null stays
// null so "deletedAt eq null" keeps its meaning.
func resolveDate(field string, op Op, v ir.IRValue, b Bound, ref time.Time) (Operand, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return Literal(ir.IRNull{}), nil
	case ir.IRNumber:
		return TimeOperand(time.UnixMilli(int64(val))), nil
	case ir.IRString:
		s := string(val)
		if b != BoundNone {
			if d, ok := ParseDuration(s); ok {
				return TimeOperand(ResolveDuration(ref, d, b)), nil
			}
		}
		if t, ok := ParseISO(s); ok {
			return TimeOperand(t), nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return TimeOperand(time.UnixMilli(ms)), nil
		}
		return Operand{}, newInvalidValue(field, op, "cannot interpret %q as a date", s)
	default:
		return Operand{}, newInvalidValue(field, op, "cannot interpret %s as a date", ir.Kind(v))
	}
}
