package facts_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workfacts/facts"
)

func TestNewSummary_Empty(t *testing.T) {
	sum := facts.NewSummary(nil)
	assert.Equal(t, "", sum.LastUpdated)
	assert.Zero(t, sum.LeaveDays)
}

func TestNewSummary_LastUpdatedIsLatest(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	// GIVEN: leave updated at T2, salary at T1
	sum := facts.NewSummary([]facts.Record{
		{DataType: facts.DataTypeLeave, Value: facts.NumberValue(13), UpdatedAt: t2},
		{DataType: facts.DataTypeSalary, Value: facts.NumberValue(28000), UpdatedAt: t1},
	})

	// THEN
	assert.Equal(t, 13.0, sum.LeaveDays)
	assert.Equal(t, 28000.0, sum.Salary)
	assert.Equal(t, facts.FormatTimestamp(t2), sum.LastUpdated)
	assert.Equal(t, "", sum.NextBonusDate)
}

func TestFormatTimestamp_FixedWidthSortsAsTime(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("CST", 8*3600))
	times := []time.Time{
		base,
		base.Add(time.Nanosecond),
		base.Add(100 * time.Millisecond),
		base.Add(time.Second),
	}

	var prev string
	for i, ts := range times {
		s := facts.FormatTimestamp(ts)
		assert.Len(t, s, len(facts.TimestampLayout)-len("Z07:00")+1)
		assert.True(t, strings.HasSuffix(s, "Z"), s)
		if i > 0 {
			assert.Less(t, prev, s)
		}
		prev = s
	}

	// View and Summary render through the same layout
	rec := facts.Record{DataType: facts.DataTypeLeave, Value: facts.NumberValue(1), UpdatedAt: base}
	assert.Equal(t, "2025-03-01T01:00:00.000000000Z", rec.View().UpdatedAt)
	assert.Equal(t, "2025-03-01T01:00:00.000000000Z", facts.NewSummary([]facts.Record{rec}).LastUpdated)
}

func TestSummary_JSONShape(t *testing.T) {
	sum := facts.NewSummary([]facts.Record{
		{DataType: facts.DataTypeBonus, Value: facts.DateValue("2025-09-22"), UpdatedAt: time.Unix(0, 0)},
	})
	b, err := json.Marshal(sum)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"leave_days", "overtime_hours", "next_bonus_date", "salary", "meal_allowance", "last_updated"} {
		assert.Contains(t, m, k)
	}
	assert.Len(t, m, 6)
}

func TestValue_JSON(t *testing.T) {
	b, err := json.Marshal(facts.View{Value: facts.NumberValue(12.5), Unit: "days"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"value":12.5`)

	var v facts.Value
	require.NoError(t, json.Unmarshal([]byte(`"2025-09-22"`), &v))
	assert.True(t, v.Equal(facts.DateValue("2025-09-22")))

	assert.Error(t, json.Unmarshal([]byte(`true`), &v))
}
