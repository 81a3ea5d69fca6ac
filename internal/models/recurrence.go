package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// RecurrenceType selects which weeks of the term a class occupies.
type RecurrenceType string

const (
	RecurrenceWeekly    RecurrenceType = "weekly"
	RecurrenceAlternate RecurrenceType = "alternate"
	RecurrenceCustom    RecurrenceType = "custom"
)

// WeekParity picks one half of an alternating term.
type WeekParity string

const (
	WeekOdd  WeekParity = "odd"
	WeekEven WeekParity = "even"
)

// RecurrencePattern describes the weeks of the term a scheduled class actually runs in.
type RecurrencePattern struct {
	Type    RecurrenceType `json:"type"`
	Pattern WeekParity     `json:"pattern,omitempty"`
	Weeks   []int          `json:"weeks,omitempty"`
}

// Weekly is the default recurrence.
func Weekly() RecurrencePattern {
	return RecurrencePattern{Type: RecurrenceWeekly}
}

// Normalize fills the weekly default and drops duplicate or out-of-term custom weeks.
func (p RecurrencePattern) Normalize() RecurrencePattern {
	out := RecurrencePattern{Type: p.Type, Pattern: p.Pattern}
	if out.Type == "" {
		out.Type = RecurrenceWeekly
	}
	switch out.Type {
	case RecurrenceWeekly:
		out.Pattern = ""
	case RecurrenceAlternate:
		out.Pattern = WeekParity(strings.ToLower(string(out.Pattern)))
	case RecurrenceCustom:
		out.Pattern = ""
		weeks := lo.Uniq(lo.Filter(p.Weeks, func(week int, _ int) bool {
			return week >= 1 && week <= TermWeeks
		}))
		sort.Ints(weeks)
		out.Weeks = weeks
	}
	return out
}

// Validate rejects patterns that cannot resolve to a non-empty set of term weeks.
func (p RecurrencePattern) Validate() error {
	switch p.Type {
	case "", RecurrenceWeekly:
		return nil
	case RecurrenceAlternate:
		pattern := WeekParity(strings.ToLower(string(p.Pattern)))
		if pattern != WeekOdd && pattern != WeekEven {
			return fmt.Errorf("alternate recurrence requires pattern odd or even, got %q", p.Pattern)
		}
		return nil
	case RecurrenceCustom:
		if len(p.Weeks) == 0 {
			return errors.New("custom recurrence requires at least one week")
		}
		for _, week := range p.Weeks {
			if week < 1 || week > TermWeeks {
				return fmt.Errorf("custom recurrence week %d outside 1-%d", week, TermWeeks)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown recurrence type %q", p.Type)
	}
}

// WeekSet resolves the pattern into the concrete, sorted weeks it occupies.
func (p RecurrencePattern) WeekSet() []int {
	n := p.Normalize()
	switch n.Type {
	case RecurrenceWeekly:
		return lo.RangeFrom(1, TermWeeks)
	case RecurrenceAlternate:
		start := 0
		switch n.Pattern {
		case WeekOdd:
			start = 1
		case WeekEven:
			start = 2
		default:
			return nil
		}
		weeks := make([]int, 0, TermWeeks/2)
		for week := start; week <= TermWeeks; week += 2 {
			weeks = append(weeks, week)
		}
		return weeks
	case RecurrenceCustom:
		return n.Weeks
	}
	return nil
}

// Key identifies the recurrence equivalence class used by the store's uniqueness indexes.
func (p RecurrencePattern) Key() string {
	n := p.Normalize()
	switch n.Type {
	case RecurrenceAlternate:
		return "alternate:" + string(n.Pattern)
	case RecurrenceCustom:
		return "custom:" + strings.Join(lo.Map(n.Weeks, func(week int, _ int) string {
			return strconv.Itoa(week)
		}), ",")
	default:
		return string(RecurrenceWeekly)
	}
}

// String renders the pattern for conflict messages.
func (p RecurrencePattern) String() string {
	n := p.Normalize()
	switch n.Type {
	case RecurrenceAlternate:
		return "alternate (" + string(n.Pattern) + " weeks)"
	case RecurrenceCustom:
		return "custom weeks " + strings.TrimPrefix(n.Key(), "custom:")
	default:
		return "weekly"
	}
}

// Overlaps reports whether two recurrence patterns can ever land on the same physical week.
func Overlaps(a, b RecurrencePattern) bool {
	a, b = a.Normalize(), b.Normalize()
	if a.Type == RecurrenceWeekly || b.Type == RecurrenceWeekly {
		return true
	}
	if a.Type == RecurrenceAlternate && b.Type == RecurrenceAlternate {
		return a.Pattern == b.Pattern
	}
	return len(lo.Intersect(a.WeekSet(), b.WeekSet())) > 0
}

// Value stores the pattern as JSON.
func (p RecurrencePattern) Value() (driver.Value, error) {
	raw, err := json.Marshal(p.Normalize())
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan loads a JSON encoded pattern.
func (p *RecurrencePattern) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Weekly()
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan recurrence: unsupported type %T", src)
	}
	var decoded RecurrencePattern
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("scan recurrence: %w", err)
	}
	*p = decoded.Normalize()
	return nil
}
