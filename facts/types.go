/*
Package facts provides the per-user fact model and its reconciliation rules.

PURPOSE:
  An external language-model service extracts facts about a user from a
  conversation (remaining leave days, salary, overtime hours, ...). This
  package maps those loosely-named fields onto typed records, keeps exactly
  one latest value per (user, data type), and exposes the read projections
  the front-end renders.

KEY CONCEPTS IN THIS FILE (types.go):
  - Value: tagged union of a number or an ISO-8601 date
  - Record: one fact about one user, with provenance (unit, description,
    created/updated timestamps)

LATEST-VALUE-WINS:
  There is no history. A write for an existing (user, data type) pair
  replaces value, unit, description and updated_at in place; created_at is
  set once on insert and never changes.

USAGE:
  svc := facts.NewService(store, logger)
  n, err := svc.Ingest(ctx, "u1", map[string]any{"leave_days": 12.5})
  rec, err := svc.Latest(ctx, "u1", facts.DataTypeLeave)

SEE ALSO:
  - registry.go: the fixed set of supported fields
  - store.go: persistence port
  - service.go: seeding, ingest and reads
*/
package facts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the only accepted layout for date-typed facts.
const DateLayout = "2006-01-02"

// TimestampLayout renders UTC timestamps at a fixed width, so string order
// is time order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp renders t in UTC with TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// =============================================================================
// VALUE - number or date
// =============================================================================

type ValueKind string

const (
	KindNumber ValueKind = "number"
	KindDate   ValueKind = "date"
)

// Value is the stored payload of a fact. Exactly one of Number or Text is
// meaningful, selected by Kind. Dates are kept as YYYY-MM-DD text.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
}

func NumberValue(n float64) Value { return Value{Kind: KindNumber, Number: n} }
func DateValue(d string) Value    { return Value{Kind: KindDate, Text: d} }

// Any returns the value as a plain Go value for JSON projections.
func (v Value) Any() any {
	if v.Kind == KindDate {
		return v.Text
	}
	return v.Number
}

func (v Value) String() string {
	if v.Kind == KindDate {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// Equal reports whether two values carry the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == KindDate {
		return v.Text == o.Text
	}
	return v.Number == o.Number
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case float64:
		*v = NumberValue(x)
	case string:
		*v = DateValue(x)
	default:
		return fmt.Errorf("unsupported fact value %s", string(b))
	}
	return nil
}

// =============================================================================
// RECORD - one fact about one user
// =============================================================================

type Record struct {
	UserID      string
	DataType    string
	Value       Value
	Unit        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// View is the JSON projection of a record used by the read endpoints.
type View struct {
	Value       Value  `json:"value"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
	UpdatedAt   string `json:"updated_at"`
}

func (r Record) View() View {
	return View{
		Value:       r.Value,
		Unit:        r.Unit,
		Description: r.Description,
		UpdatedAt:   FormatTimestamp(r.UpdatedAt),
	}
}

// Views keys records by data type.
func Views(records []Record) map[string]View {
	out := make(map[string]View, len(records))
	for _, r := range records {
		out[r.DataType] = r.View()
	}
	return out
}

// Simple collapses each record to its bare value.
func Simple(records []Record) map[string]any {
	out := make(map[string]any, len(records))
	for _, r := range records {
		out[r.DataType] = r.Value.Any()
	}
	return out
}
