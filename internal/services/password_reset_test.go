package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
)

func newTestReset(env *testEnv, mail *fakeMail) PasswordResetService {
	return NewPasswordResetService(env.db, env.log, env.users, env.userTokens, env.resets, mail, PasswordResetConfig{
		PublicBaseURL: "https://tasks.example.com/",
		TokenTTL:      time.Hour,
	})
}

// linkParts pulls uid and token out of the emailed reset link.
func linkParts(t *testing.T, text string) (string, string) {
	t.Helper()
	idx := strings.Index(text, "/reset-password/")
	require.GreaterOrEqual(t, idx, 0, "no reset link in %q", text)
	parts := strings.Split(strings.Trim(strings.TrimSpace(text[idx+len("/reset-password/"):]), "/"), "/")
	require.Len(t, parts, 2)
	return parts[0], parts[1]
}

func registerUser(t *testing.T, env *testEnv, email string) *types.User {
	t.Helper()
	auth := newTestAuth(env)
	u := &types.User{Email: email, Password: "original"}
	require.NoError(t, auth.RegisterUser(context.Background(), u))
	return u
}

func TestRequestResetIsSilentForUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	mail := &fakeMail{}
	svc := newTestReset(env, mail)

	require.NoError(t, svc.RequestReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, mail.messages())
}

func TestRequestResetSwallowsMailFailures(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env, "flaky@example.com")
	mail := &fakeMail{err: errors.New("sendgrid down")}
	svc := newTestReset(env, mail)

	require.NoError(t, svc.RequestReset(context.Background(), "flaky@example.com"))
	assert.Len(t, mail.messages(), 1)
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := registerUser(t, env, "reset-me@example.com")
	auth := newTestAuth(env)
	access, _, err := auth.LoginUser(ctx, "reset-me@example.com", "original")
	require.NoError(t, err)

	mail := &fakeMail{}
	svc := newTestReset(env, mail)
	require.NoError(t, svc.RequestReset(ctx, "Reset-Me@example.com"))

	msgs := mail.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "reset-me@example.com", msgs[0].To[0].Email)
	assert.Contains(t, msgs[0].Text, "https://tasks.example.com/reset-password/")
	uid, token := linkParts(t, msgs[0].Text)
	assert.Equal(t, EncodeUID(u.ID), uid)

	require.NoError(t, svc.ResetPassword(ctx, ResetPasswordInput{UID: uid, Token: token, NewPassword: "brand-new", ConfirmPassword: "brand-new"}))

	users, err := env.users.GetByIDs(dbctx.Context{Ctx: ctx}, []uint{u.ID})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte("brand-new")))

	_, err = auth.SetContextFromToken(ctx, access)
	requireKind(t, err, apierr.KindUnauthorized)

	err = svc.ResetPassword(ctx, ResetPasswordInput{UID: uid, Token: token, NewPassword: "again-new", ConfirmPassword: "again-new"})
	ae := requireKind(t, err, apierr.KindValidation)
	assert.Equal(t, "Invalid or expired token", ae.Error())
}

func TestResetTokenIsBoundToItsUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerUser(t, env, "a@example.com")
	b := registerUser(t, env, "b@example.com")

	mail := &fakeMail{}
	svc := newTestReset(env, mail)
	require.NoError(t, svc.RequestReset(ctx, "a@example.com"))
	_, tokenA := linkParts(t, mail.messages()[0].Text)

	err := svc.ResetPassword(ctx, ResetPasswordInput{UID: EncodeUID(b.ID), Token: tokenA, NewPassword: "hijacked", ConfirmPassword: "hijacked"})
	requireKind(t, err, apierr.KindValidation)
}

func TestNewRequestInvalidatesOlderTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerUser(t, env, "twice@example.com")

	mail := &fakeMail{}
	svc := newTestReset(env, mail)
	require.NoError(t, svc.RequestReset(ctx, "twice@example.com"))
	require.NoError(t, svc.RequestReset(ctx, "twice@example.com"))
	msgs := mail.messages()
	require.Len(t, msgs, 2)

	uid, first := linkParts(t, msgs[0].Text)
	_, second := linkParts(t, msgs[1].Text)

	err := svc.ResetPassword(ctx, ResetPasswordInput{UID: uid, Token: first, NewPassword: "newpass", ConfirmPassword: "newpass"})
	requireKind(t, err, apierr.KindValidation)
	require.NoError(t, svc.ResetPassword(ctx, ResetPasswordInput{UID: uid, Token: second, NewPassword: "newpass", ConfirmPassword: "newpass"}))
}

func TestResetMismatchFailsBeforeLookup(t *testing.T) {
	env := newTestEnv(t)
	svc := newTestReset(env, &fakeMail{})

	err := svc.ResetPassword(context.Background(), ResetPasswordInput{UID: "!!not-base64!!", Token: "bogus", NewPassword: "abcdef", ConfirmPassword: "abcdeg"})
	ae := requireKind(t, err, apierr.KindValidation)
	assert.Equal(t, []string{"Passwords do not match"}, ae.Fields["non_field_errors"])

	err = svc.ResetPassword(context.Background(), ResetPasswordInput{UID: "x", Token: "y", NewPassword: "abc", ConfirmPassword: "abc"})
	ae = requireKind(t, err, apierr.KindValidation)
	assert.NotEmpty(t, ae.Fields["new_password"])
}

func TestUIDRoundTrip(t *testing.T) {
	id, err := DecodeUID(EncodeUID(42))
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	_, err = DecodeUID("@@@")
	assert.Error(t, err)
}

func TestPurgeExpiredRemovesOnlyStaleTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerUser(t, env, "purge@example.com")

	svc := newTestReset(env, &fakeMail{})
	require.NoError(t, svc.RequestReset(ctx, "purge@example.com"))

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	impl := svc.(*passwordResetService)
	impl.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	n, err = svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left int64
	require.NoError(t, env.db.Model(&types.PasswordResetToken{}).Count(&left).Error)
	assert.Zero(t, left)
}
