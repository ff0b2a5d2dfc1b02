package timeoff_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workfacts/facts"
	"github.com/warp/workfacts/store/sqlite"
	"github.com/warp/workfacts/timeoff"
)

// End-to-end flows against a real SQLite store: extraction callback seeds
// the user, then leave requests move the balance.

func newSQLiteWorkflow(t *testing.T) (*timeoff.Workflow, *facts.Service) {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := facts.NewService(st, nil)
	return timeoff.NewWorkflow(svc, nil, nil), svc
}

func TestScenario_SeedThenIngestEqualValue(t *testing.T) {
	ctx := context.Background()
	_, svc := newSQLiteWorkflow(t)

	// GIVEN: u1 seeded with defaults
	seeded, err := svc.EnsureSeeded(ctx, "u1")
	require.NoError(t, err)
	require.True(t, seeded)

	// WHEN: the extractor reports the same leave balance
	n, err := svc.Ingest(ctx, "u1", map[string]any{"leave_days": 15.0})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// THEN: still 15
	rec, err := svc.Latest(ctx, "u1", facts.DataTypeLeave)
	require.NoError(t, err)
	assert.Equal(t, 15.0, rec.Value.Number)
}

func TestScenario_AnnualLeaveApproved(t *testing.T) {
	ctx := context.Background()
	wf, svc := newSQLiteWorkflow(t)
	_, err := svc.EnsureSeeded(ctx, "u1")
	require.NoError(t, err)

	// GIVEN: a 2-day annual leave request with 15 days available
	req, err := wf.Submit(ctx, timeoff.SubmitInput{
		UserID:    "u1",
		LeaveType: timeoff.LeaveAnnual,
		StartDate: "2025-03-10",
		EndDate:   "2025-03-11",
		Days:      days(2),
	})
	require.NoError(t, err)

	// WHEN: approved
	res, err := wf.Resolve(ctx, req.ID, true, "manager")
	require.NoError(t, err)

	// THEN: 13 remain, in the response and in the store
	assert.Equal(t, 13.0, res.RemainingLeaveDays)
	assert.True(t, res.Persisted)

	rec, err := svc.Latest(ctx, "u1", facts.DataTypeLeave)
	require.NoError(t, err)
	assert.Equal(t, 13.0, rec.Value.Number)
}

func TestScenario_SickLeaveApproved_NoDebit(t *testing.T) {
	ctx := context.Background()
	wf, svc := newSQLiteWorkflow(t)
	_, err := svc.Ingest(ctx, "u1", map[string]any{"leave_days": 13})
	require.NoError(t, err)

	// GIVEN: a 1-day sick leave request with 13 days available
	req, err := wf.Submit(ctx, timeoff.SubmitInput{
		UserID:    "u1",
		LeaveType: timeoff.LeaveSick,
		StartDate: "2025-04-01",
		EndDate:   "2025-04-01",
		Days:      days(1),
	})
	require.NoError(t, err)

	// WHEN: approved
	res, err := wf.Resolve(ctx, req.ID, true, "")
	require.NoError(t, err)

	// THEN: not debited, balance unchanged
	assert.False(t, res.Debited)
	assert.Equal(t, 13.0, res.RemainingLeaveDays)

	bal, err := svc.LeaveBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 13.0, bal)
}
