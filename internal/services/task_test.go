package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/tasktracker-backend/internal/data/repos/testutil"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestTaskCreateForcesCallerAsOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := testutil.SeedUser(t, ctx, env.db, "alice@example.com")

	svc := NewTaskService(env.db, env.log, env.tasks)
	task, err := svc.Create(asUser(alice.ID), TaskInput{
		Title:            strPtr("  Buy milk "),
		Description:      strPtr("two liters"),
		ScheduledDateSet: true,
		ScheduledDate:    strPtr("2024-03-01"),
	})
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	assert.Equal(t, alice.ID, task.AssignedToID)
	assert.Equal(t, "Buy milk", task.Title)
	assert.False(t, task.Completed)
	assert.Equal(t, "2024-03-01", task.ScheduledOn())
}

func TestTaskValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := testutil.SeedUser(t, ctx, env.db, "alice@example.com")
	svc := NewTaskService(env.db, env.log, env.tasks)

	_, err := svc.Create(asUser(alice.ID), TaskInput{Title: strPtr(" ")})
	ae := requireKind(t, err, apierr.KindValidation)
	assert.Equal(t, []string{msgBlank}, ae.Fields["title"])
	assert.Equal(t, []string{msgRequired}, ae.Fields["description"])

	long := make([]byte, MaxTitleLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.Create(asUser(alice.ID), TaskInput{
		Title:            strPtr(string(long)),
		Description:      strPtr("d"),
		ScheduledDateSet: true,
		ScheduledDate:    strPtr("01/03/2024"),
	})
	ae = requireKind(t, err, apierr.KindValidation)
	assert.Contains(t, ae.Fields["title"][0], "255")
	assert.Equal(t, []string{msgDateFormat}, ae.Fields["scheduled_date"])

	_, err = svc.Create(context.Background(), TaskInput{Title: strPtr("t"), Description: strPtr("d")})
	requireKind(t, err, apierr.KindUnauthorized)
}

func TestTaskAccessIsScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := testutil.SeedUser(t, ctx, env.db, "alice@example.com")
	bob := testutil.SeedUser(t, ctx, env.db, "bob@example.com")
	bobsTask := testutil.SeedTask(t, ctx, env.db, bob.ID, "bob's", "")

	svc := NewTaskService(env.db, env.log, env.tasks)
	asAlice := asUser(alice.ID)

	_, err := svc.Get(dbctx.Context{Ctx: asAlice}, bobsTask.ID)
	ae := requireKind(t, err, apierr.KindNotFound)
	assert.Equal(t, "Task not found", ae.Error())

	_, err = svc.Get(dbctx.Context{Ctx: asAlice}, bobsTask.ID+1000)
	requireKind(t, err, apierr.KindNotFound)

	_, err = svc.Patch(asAlice, bobsTask.ID, TaskInput{Completed: boolPtr(true)})
	requireKind(t, err, apierr.KindNotFound)

	requireKind(t, svc.Delete(asAlice, bobsTask.ID), apierr.KindNotFound)

	list, err := svc.List(dbctx.Context{Ctx: asAlice})
	require.NoError(t, err)
	assert.Empty(t, list)

	still, err := svc.Get(dbctx.Context{Ctx: asUser(bob.ID)}, bobsTask.ID)
	require.NoError(t, err)
	assert.False(t, still.Completed)
}

func TestTaskReplacePatchDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := testutil.SeedUser(t, ctx, env.db, "alice@example.com")
	svc := NewTaskService(env.db, env.log, env.tasks)
	asAlice := asUser(alice.ID)

	task, err := svc.Create(asAlice, TaskInput{Title: strPtr("draft"), Description: strPtr("d"), Completed: boolPtr(true)})
	require.NoError(t, err)

	_, err = svc.Replace(asAlice, task.ID, TaskInput{Title: strPtr("only title")})
	ae := requireKind(t, err, apierr.KindValidation)
	assert.Equal(t, []string{msgRequired}, ae.Fields["description"])

	replaced, err := svc.Replace(asAlice, task.ID, TaskInput{Title: strPtr("final"), Description: strPtr("done right")})
	require.NoError(t, err)
	assert.Equal(t, "final", replaced.Title)
	assert.True(t, replaced.Completed, "omitted fields keep their value")

	patched, err := svc.Patch(asAlice, task.ID, TaskInput{
		Completed:        boolPtr(false),
		ScheduledDateSet: true,
		ScheduledDate:    strPtr("2024-12-24"),
	})
	require.NoError(t, err)
	assert.Equal(t, "final", patched.Title)
	assert.False(t, patched.Completed)
	assert.Equal(t, "2024-12-24", patched.ScheduledOn())

	cleared, err := svc.Patch(asAlice, task.ID, TaskInput{ScheduledDateSet: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.ScheduledDate)

	got, err := svc.Get(dbctx.Context{Ctx: asAlice}, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "done right", got.Description)
	assert.Nil(t, got.ScheduledDate)

	require.NoError(t, svc.Delete(asAlice, task.ID))
	_, err = svc.Get(dbctx.Context{Ctx: asAlice}, task.ID)
	requireKind(t, err, apierr.KindNotFound)
}
