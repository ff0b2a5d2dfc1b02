package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workfacts/facts"
	"github.com/warp/workfacts/store/postgres"
)

// Needs a live database: WORKFACTS_TEST_POSTGRES_DSN=postgres://... go test ./store/postgres
func newTestStore(t *testing.T) *postgres.Store {
	dsn := os.Getenv("WORKFACTS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WORKFACTS_TEST_POSTGRES_DSN not set")
	}
	st, err := postgres.Open(postgres.Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// each test gets its own user so runs against a shared database don't collide
func testUser() string { return "test-" + ksuid.New().String() }

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := postgres.Open(postgres.Config{})
	assert.Error(t, err)
}

func TestStore_SeedAndUpsert(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	user := testUser()
	t0 := time.Now().UTC().Truncate(time.Microsecond)

	ok, err := st.SeedIfEmpty(ctx, user, facts.Defaults(user, t0))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.SeedIfEmpty(ctx, user, facts.Defaults(user, t0))
	require.NoError(t, err)
	assert.False(t, ok)

	t1 := t0.Add(time.Minute)
	require.NoError(t, st.Upsert(ctx, facts.Record{
		UserID:    user,
		DataType:  facts.DataTypeLeave,
		Value:     facts.NumberValue(13),
		Unit:      "days",
		CreatedAt: t1,
		UpdatedAt: t1,
	}))

	got, err := st.Get(ctx, user, facts.DataTypeLeave)
	require.NoError(t, err)
	assert.Equal(t, 13.0, got.Value.Number)
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.True(t, got.UpdatedAt.Equal(t1))

	bonus, err := st.Get(ctx, user, facts.DataTypeBonus)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-22", bonus.Value.Text)

	all, err := st.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestStore_GetMissing(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Get(context.Background(), testUser(), facts.DataTypeLeave)
	assert.True(t, facts.IsNotFound(err))
}
