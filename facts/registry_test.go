package facts_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workfacts/facts"
)

func TestResolve_KnownKeys(t *testing.T) {
	tests := []struct {
		key      string
		dataType string
		unit     string
		kind     facts.ValueKind
	}{
		{"leave_days", facts.DataTypeLeave, "days", facts.KindNumber},
		{"meal_allowance", facts.DataTypeMeal, "ntd", facts.KindNumber},
		{"overtime_hours", facts.DataTypeOvertime, "hours", facts.KindNumber},
		{"salary", facts.DataTypeSalary, "ntd", facts.KindNumber},
		{"next_bonus_date", facts.DataTypeBonus, "date", facts.KindDate},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			def, ok := facts.Resolve(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.dataType, def.DataType)
			assert.Equal(t, tt.unit, def.Unit)
			assert.Equal(t, tt.kind, def.ValueKind)
			assert.Equal(t, tt.key, def.Kind.String())
		})
	}
}

func TestResolve_UnknownKey(t *testing.T) {
	_, ok := facts.Resolve("favourite_color")
	assert.False(t, ok)

	// internal names are not external keys
	_, ok = facts.Resolve(facts.DataTypeLeave)
	assert.False(t, ok)
}

func TestByDataType(t *testing.T) {
	def, ok := facts.ByDataType(facts.DataTypeBonus)
	require.True(t, ok)
	assert.Equal(t, "next_bonus_date", def.ExternalKey)

	_, ok = facts.ByDataType("nope")
	assert.False(t, ok)
}

func TestFields_UniqueAndStable(t *testing.T) {
	fields := facts.Fields()
	require.Len(t, fields, 5)

	keys := map[string]bool{}
	types := map[string]bool{}
	for _, f := range fields {
		assert.False(t, keys[f.ExternalKey])
		assert.False(t, types[f.DataType])
		keys[f.ExternalKey] = true
		types[f.DataType] = true
	}
	assert.Equal(t, facts.ExternalKeys(), facts.ExternalKeys())
	assert.Equal(t, "leave_days", facts.ExternalKeys()[0])
}

func TestDefaults(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := facts.Defaults("u1", at)
	require.Len(t, recs, 5)

	byType := map[string]facts.Record{}
	for _, r := range recs {
		assert.Equal(t, "u1", r.UserID)
		assert.Equal(t, at, r.CreatedAt)
		assert.Equal(t, at, r.UpdatedAt)
		byType[r.DataType] = r
	}
	assert.Equal(t, 15.0, byType[facts.DataTypeLeave].Value.Number)
	assert.Equal(t, 100.0, byType[facts.DataTypeMeal].Value.Number)
	assert.Equal(t, 30.0, byType[facts.DataTypeOvertime].Value.Number)
	assert.Equal(t, 28000.0, byType[facts.DataTypeSalary].Value.Number)
	assert.Equal(t, "2025-09-22", byType[facts.DataTypeBonus].Value.Text)
}
