package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule allows Limit hits per fixed Window.
type Rule struct {
	Limit  int64
	Window time.Duration
	unit   string
	count  int
}

// String renders the rule the way clients see it, e.g. "10 per 1 minute".
func (r Rule) String() string {
	return fmt.Sprintf("%d per %d %s", r.Limit, r.count, r.unit)
}

// key is the rule's component of a counter key.
func (r Rule) key() string {
	return fmt.Sprintf("%d-%ds", r.Limit, int64(r.Window/time.Second))
}

var units = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRules reads a comma or semicolon separated list such as
// "200/day, 50 per hour, 5 per 10 minutes".
func ParseRules(s string) ([]Rule, error) {
	var out []Rule
	for _, item := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		r, err := parseRule(item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseRule(s string) (Rule, error) {
	var amount, period string
	if a, p, ok := strings.Cut(s, "/"); ok {
		amount, period = a, p
	} else if a, p, ok := strings.Cut(strings.ToLower(s), " per "); ok {
		amount, period = a, p
	} else {
		return Rule{}, fmt.Errorf("rate limit %q: want \"N/unit\" or \"N per unit\"", s)
	}

	limit, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
	if err != nil || limit <= 0 {
		return Rule{}, fmt.Errorf("rate limit %q: bad amount %q", s, amount)
	}

	fields := strings.Fields(strings.ToLower(period))
	count := 1
	switch len(fields) {
	case 1:
	case 2:
		if count, err = strconv.Atoi(fields[0]); err != nil || count <= 0 {
			return Rule{}, fmt.Errorf("rate limit %q: bad multiplier %q", s, fields[0])
		}
		fields = fields[1:]
	default:
		return Rule{}, fmt.Errorf("rate limit %q: bad period %q", s, period)
	}
	unit := strings.TrimSuffix(fields[0], "s")
	d, ok := units[unit]
	if !ok {
		return Rule{}, fmt.Errorf("rate limit %q: unknown unit %q", s, fields[0])
	}
	return Rule{Limit: limit, Window: time.Duration(count) * d, unit: unit, count: count}, nil
}

// MustParseRules is ParseRules for literals.
func MustParseRules(s string) []Rule {
	rules, err := ParseRules(s)
	if err != nil {
		panic(err)
	}
	return rules
}
