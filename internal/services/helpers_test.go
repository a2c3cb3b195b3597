package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/data/repos"
	"github.com/yungbote/tasktracker-backend/internal/data/repos/testutil"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/platform/ctxutil"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
	"github.com/yungbote/tasktracker-backend/internal/platform/sendgrid"
)

type testEnv struct {
	db         *gorm.DB
	log        *logger.Logger
	users      repos.UserRepo
	userTokens repos.UserTokenRepo
	resets     repos.PasswordResetTokenRepo
	tasks      repos.TaskRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return &testEnv{
		db:         db,
		log:        log,
		users:      repos.NewUserRepo(db, log),
		userTokens: repos.NewUserTokenRepo(db, log),
		resets:     repos.NewPasswordResetTokenRepo(db, log),
		tasks:      repos.NewTaskRepo(db, log),
	}
}

func asUser(userID uint) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: userID})
}

func requireKind(t *testing.T, err error, kind apierr.Kind) *apierr.Error {
	t.Helper()
	require.Error(t, err)
	var ae *apierr.Error
	require.True(t, errors.As(err, &ae), "expected *apierr.Error, got %T: %v", err, err)
	require.Equal(t, kind, ae.Kind, "unexpected kind for %v", err)
	return ae
}

type fakeMail struct {
	mu   sync.Mutex
	sent []sendgrid.SendEmailRequest
	err  error
}

func (f *fakeMail) Send(ctx context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	if f.err != nil {
		return nil, f.err
	}
	return &sendgrid.SendEmailResult{StatusCode: 202}, nil
}

func (f *fakeMail) messages() []sendgrid.SendEmailRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sendgrid.SendEmailRequest(nil), f.sent...)
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
