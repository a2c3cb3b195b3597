package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/data/repos"
	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/observability"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
	"github.com/yungbote/tasktracker-backend/internal/platform/sendgrid"
)

const ForgotPasswordMessage = "If the email exists, a reset link has been sent."

var (
	errPasswordMismatch = apierr.InvalidFields(fieldErrors("non_field_errors", "Passwords do not match"))
	errInvalidReset     = apierr.Validation("invalid_reset_token", errors.New("Invalid or expired token"))
)

type ResetPasswordInput struct {
	UID             string
	Token           string
	NewPassword     string
	ConfirmPassword string
}

type PasswordResetService interface {
	// RequestReset never reports whether the email matched an account.
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
	// PurgeExpired deletes reset tokens whose expiry has passed.
	PurgeExpired(ctx context.Context) (int64, error)
}

type PasswordResetConfig struct {
	PublicBaseURL string
	TokenTTL      time.Duration
}

type passwordResetService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	resetRepo     repos.PasswordResetTokenRepo
	mail          sendgrid.Client
	cfg           PasswordResetConfig
	now           func() time.Time
}

func NewPasswordResetService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	resetRepo repos.PasswordResetTokenRepo,
	mail sendgrid.Client,
	cfg PasswordResetConfig,
) PasswordResetService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 72 * time.Hour
	}
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:8000"
	}
	return &passwordResetService{
		db:            db,
		log:           log.With("service", "PasswordResetService"),
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		resetRepo:     resetRepo,
		mail:          mail,
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	users, err := s.userRepo.GetByEmails(dbctx.Context{Ctx: ctx}, []string{email})
	if err != nil {
		return storageErr("user_lookup_failed", err)
	}
	if len(users) == 0 || users[0] == nil {
		s.log.Ctx(ctx).Debug("Password reset requested for unknown email")
		return nil
	}
	user := users[0]

	token, err := newResetToken()
	if err != nil {
		return apierr.Unexpected("token_generation_failed", err)
	}
	now := s.now()
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.resetRepo.InvalidateForUser(dbc, user.ID, now); err != nil {
			return err
		}
		_, err := s.resetRepo.Create(dbc, &types.PasswordResetToken{
			UserID:    user.ID,
			TokenHash: hashResetToken(token),
			ExpiresAt: now.Add(s.cfg.TokenTTL),
		})
		return err
	}); err != nil {
		return storageErr("reset_token_failed", err)
	}

	link := fmt.Sprintf("%s/reset-password/%s/%s/", s.cfg.PublicBaseURL, EncodeUID(user.ID), token)
	if _, err := s.mail.Send(ctx, sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: user.Email}},
		Subject:    "Password Reset Request",
		Text:       fmt.Sprintf("Use the link below to reset your password:\n\n%s", link),
		Categories: []string{"password_reset"},
	}); err != nil {
		// The response must not reveal whether delivery was attempted.
		s.log.Ctx(ctx).Error("Password reset email failed", "user_id", user.ID, "error", err)
		observability.Current().IncMailSend("password_reset", "failed")
		return nil
	}
	observability.Current().IncMailSend("password_reset", "sent")
	s.log.Ctx(ctx).Info("Password reset email sent", "user_id", user.ID)
	return nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	fields := map[string][]string{}
	if strings.TrimSpace(in.UID) == "" {
		fields["uid"] = []string{msgRequired}
	}
	if strings.TrimSpace(in.Token) == "" {
		fields["token"] = []string{msgRequired}
	}
	minLen := fmt.Sprintf("Ensure this field has at least %d characters.", MinPasswordLength)
	if len(in.NewPassword) < MinPasswordLength {
		fields["new_password"] = []string{minLen}
	}
	if len(in.ConfirmPassword) < MinPasswordLength {
		fields["confirm_password"] = []string{minLen}
	}
	if len(fields) > 0 {
		return apierr.InvalidFields(fields)
	}
	if in.NewPassword != in.ConfirmPassword {
		return errPasswordMismatch
	}

	userID, err := DecodeUID(in.UID)
	if err != nil {
		return errInvalidReset
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apierr.Unexpected("hash_failed", err)
	}

	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		users, err := s.userRepo.GetByIDs(dbc, []uint{userID})
		if err != nil {
			return storageErr("user_lookup_failed", err)
		}
		if len(users) == 0 || users[0] == nil {
			return errInvalidReset
		}
		row, err := s.resetRepo.GetActiveByHash(dbc, userID, hashResetToken(strings.TrimSpace(in.Token)), now)
		if err != nil {
			return storageErr("reset_token_lookup_failed", err)
		}
		if !row.Usable(now) {
			return errInvalidReset
		}
		if err := s.resetRepo.MarkUsed(dbc, row.ID, now); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errInvalidReset
			}
			return storageErr("reset_token_update_failed", err)
		}
		if err := s.userRepo.UpdatePassword(dbc, userID, string(hashed)); err != nil {
			return storageErr("password_update_failed", err)
		}
		if err := s.userTokenRepo.DeleteByUserIDs(dbc, []uint{userID}); err != nil {
			return storageErr("session_revoke_failed", err)
		}
		s.log.Ctx(ctx).Info("Password reset completed", "user_id", userID)
		return nil
	})
}

func (s *passwordResetService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.resetRepo.DeleteExpired(dbctx.Context{Ctx: ctx}, s.now())
	if err != nil {
		return 0, storageErr("reset_token_purge_failed", err)
	}
	if n > 0 {
		s.log.Info("Expired reset tokens purged", "count", n)
	}
	return n, nil
}

// EncodeUID is the URL-safe base64 form of a user id used in reset links.
func EncodeUID(id uint) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(id), 10)))
}

func DecodeUID(uid string) (uint, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(uid), "="))
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid uid")
	}
	return uint(id), nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
