package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/data/repos"
	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/platform/ctxutil"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

type UserService interface {
	GetMe(dbc dbctx.Context) (*types.User, error)
	UpdateName(ctx context.Context, firstName, lastName string) (*types.User, error)
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) UserService {
	serviceLog := log.With("service", "UserService")
	return &userService{
		db:       db,
		log:      serviceLog,
		userRepo: userRepo,
	}
}

func (us *userService) GetMe(dbc dbctx.Context) (*types.User, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == 0 {
		us.log.Warn("User id not set in request data")
		return nil, errUnauthenticated
	}

	found, err := us.userRepo.GetByIDs(dbc, []uint{rd.UserID})
	if err != nil {
		return nil, storageErr("user_lookup_failed", err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, apierr.NotFound("user_not_found", errors.New("user does not exist"))
	}
	return found[0], nil
}

func (us *userService) UpdateName(ctx context.Context, firstName, lastName string) (*types.User, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == 0 {
		return nil, errUnauthenticated
	}

	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	fields := map[string][]string{}
	if firstName == "" {
		fields["first_name"] = []string{"This field may not be blank."}
	}
	if lastName == "" {
		fields["last_name"] = []string{"This field may not be blank."}
	}
	if len(fields) > 0 {
		return nil, apierr.InvalidFields(fields)
	}

	var out *types.User
	if err := us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := us.userRepo.UpdateName(dbc, rd.UserID, firstName, lastName); err != nil {
			return storageErr("update_name_failed", err)
		}
		u, err := us.GetMe(dbc)
		if err != nil {
			return err
		}
		out = u
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}
