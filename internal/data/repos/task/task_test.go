package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/data/repos/testutil"
	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
)

func TestTaskRepoCRUD(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewTaskRepo(db, testutil.Logger(t))

	alice := testutil.SeedUser(t, ctx, tx, "alice@example.com")
	bob := testutil.SeedUser(t, ctx, tx, "bob@example.com")

	d := testutil.MustDate(t, "2024-03-01")
	created, err := repo.Create(dbc, []*types.Task{
		{Title: "one", Description: "first", AssignedToID: alice.ID, ScheduledDate: &d},
		{Title: "two", Description: "second", AssignedToID: alice.ID, Completed: true},
		{Title: "bob's", Description: "other owner", AssignedToID: bob.ID},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	for _, c := range created {
		assert.NotZero(t, c.ID)
	}

	list, err := repo.ListByOwner(dbc, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "one", list[0].Title)
	assert.Equal(t, "2024-03-01", list[0].ScheduledOn())
	assert.Equal(t, "", list[1].ScheduledOn())

	got, err := repo.GetByIDForOwner(dbc, created[0].ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Description)

	_, err = repo.GetByIDForOwner(dbc, created[0].ID, bob.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	got.Title = "one (edited)"
	got.Completed = true
	got.ScheduledDate = nil
	require.NoError(t, repo.Update(dbc, got))
	reloaded, err := repo.GetByIDForOwner(dbc, got.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "one (edited)", reloaded.Title)
	assert.True(t, reloaded.Completed)
	assert.Nil(t, reloaded.ScheduledDate)

	stolen := *reloaded
	stolen.AssignedToID = bob.ID
	assert.True(t, errors.Is(repo.Update(dbc, &stolen), gorm.ErrRecordNotFound))

	ok, err := repo.DeleteForOwner(dbc, created[2].ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok, "cannot delete another owner's task")

	ok, err = repo.DeleteForOwner(dbc, created[1].ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	list, err = repo.ListByOwner(dbc, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTaskRepoExistsForOwnerOnDate(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewTaskRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, "dup@example.com")
	other := testutil.SeedUser(t, ctx, tx, "dup-other@example.com")
	testutil.SeedTask(t, ctx, tx, u.ID, "Write report", "2024-03-01")

	exists, err := repo.ExistsForOwnerOnDate(dbc, u.ID, "Write report", testutil.MustDate(t, "2024-03-01"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsForOwnerOnDate(dbc, u.ID, "Write report", testutil.MustDate(t, "2024-03-02"))
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsForOwnerOnDate(dbc, other.ID, "Write report", testutil.MustDate(t, "2024-03-01"))
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsForOwnerOnDate(dbc, u.ID, "write report", testutil.MustDate(t, "2024-03-01"))
	require.NoError(t, err)
	assert.False(t, exists, "titles compare exactly")
}
