/*
registry.go - The fixed vocabulary of supported fact fields

PURPOSE:
  The extraction service sends fields by external name ("leave_days").
  Each supported field is a FieldKind constant that carries everything the
  store needs: the internal data type, unit, description, value kind and
  the default used when a user is seeded.

INVARIANTS:
  - ExternalKey is unique
  - DataType is unique
  - The set never changes at runtime (no Register function)

UNKNOWN KEYS:
  Resolve reports ok=false. Callers skip such keys silently; an unknown key
  in an incoming batch is never an error.

SEE ALSO:
  - service.go: Ingest resolves every incoming key through Resolve
*/
package facts

import "time"

// Internal data types.
const (
	DataTypeLeave    = "leave"
	DataTypeMeal     = "meal"
	DataTypeOvertime = "overtime"
	DataTypeSalary   = "salary"
	DataTypeBonus    = "bonus"
)

type FieldKind int

const (
	FieldLeaveDays FieldKind = iota + 1
	FieldMealAllowance
	FieldOvertimeHours
	FieldSalary
	FieldNextBonusDate
)

// FieldDefinition describes one supported field.
type FieldDefinition struct {
	Kind        FieldKind
	ExternalKey string
	DataType    string
	Unit        string
	Description string
	ValueKind   ValueKind
	Default     Value
}

var definitions = [...]FieldDefinition{
	{
		Kind:        FieldLeaveDays,
		ExternalKey: "leave_days",
		DataType:    DataTypeLeave,
		Unit:        "days",
		Description: "Remaining annual leave days",
		ValueKind:   KindNumber,
		Default:     NumberValue(15),
	},
	{
		Kind:        FieldMealAllowance,
		ExternalKey: "meal_allowance",
		DataType:    DataTypeMeal,
		Unit:        "ntd",
		Description: "Remaining meal allowance",
		ValueKind:   KindNumber,
		Default:     NumberValue(100),
	},
	{
		Kind:        FieldOvertimeHours,
		ExternalKey: "overtime_hours",
		DataType:    DataTypeOvertime,
		Unit:        "hours",
		Description: "Overtime hours",
		ValueKind:   KindNumber,
		Default:     NumberValue(30),
	},
	{
		Kind:        FieldSalary,
		ExternalKey: "salary",
		DataType:    DataTypeSalary,
		Unit:        "ntd",
		Description: "Monthly salary",
		ValueKind:   KindNumber,
		Default:     NumberValue(28000),
	},
	{
		Kind:        FieldNextBonusDate,
		ExternalKey: "next_bonus_date",
		DataType:    DataTypeBonus,
		Unit:        "date",
		Description: "Next bonus payout date",
		ValueKind:   KindDate,
		Default:     DateValue("2025-09-22"),
	},
}

var (
	byExternalKey = make(map[string]FieldDefinition, len(definitions))
	byDataType    = make(map[string]FieldDefinition, len(definitions))
)

func init() {
	for _, d := range definitions {
		if _, dup := byExternalKey[d.ExternalKey]; dup {
			panic("facts: duplicate external key " + d.ExternalKey)
		}
		if _, dup := byDataType[d.DataType]; dup {
			panic("facts: duplicate data type " + d.DataType)
		}
		byExternalKey[d.ExternalKey] = d
		byDataType[d.DataType] = d
	}
}

// Definition returns the definition of a kind.
func (k FieldKind) Definition() FieldDefinition {
	return definitions[k-1]
}

func (k FieldKind) String() string {
	if k < FieldLeaveDays || int(k) > len(definitions) {
		return "unknown"
	}
	return definitions[k-1].ExternalKey
}

// Resolve looks up a field by its external key.
func Resolve(externalKey string) (FieldDefinition, bool) {
	d, ok := byExternalKey[externalKey]
	return d, ok
}

// ByDataType looks up a field by its internal data type.
func ByDataType(dataType string) (FieldDefinition, bool) {
	d, ok := byDataType[dataType]
	return d, ok
}

// Fields returns every definition in declaration order.
func Fields() []FieldDefinition {
	out := make([]FieldDefinition, len(definitions))
	copy(out, definitions[:])
	return out
}

// ExternalKeys returns the external keys in declaration order.
func ExternalKeys() []string {
	out := make([]string, len(definitions))
	for i, d := range definitions {
		out[i] = d.ExternalKey
	}
	return out
}

// Defaults returns the seed record set for a user, stamped with at.
func Defaults(userID string, at time.Time) []Record {
	out := make([]Record, 0, len(definitions))
	for _, d := range definitions {
		out = append(out, Record{
			UserID:      userID,
			DataType:    d.DataType,
			Value:       d.Default,
			Unit:        d.Unit,
			Description: d.Description,
			CreatedAt:   at,
			UpdatedAt:   at,
		})
	}
	return out
}
