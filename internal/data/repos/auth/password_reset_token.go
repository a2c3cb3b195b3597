package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

type PasswordResetTokenRepo interface {
	Create(dbc dbctx.Context, token *types.PasswordResetToken) (*types.PasswordResetToken, error)
	// GetActiveByHash locks the row when running inside a transaction.
	GetActiveByHash(dbc dbctx.Context, userID uint, tokenHash string, now time.Time) (*types.PasswordResetToken, error)
	MarkUsed(dbc dbctx.Context, tokenID uuid.UUID, usedAt time.Time) error
	InvalidateForUser(dbc dbctx.Context, userID uint, usedAt time.Time) error
	DeleteExpired(dbc dbctx.Context, before time.Time) (int64, error)
}

type passwordResetTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPasswordResetTokenRepo(db *gorm.DB, baseLog *logger.Logger) PasswordResetTokenRepo {
	repoLog := baseLog.With("repo", "PasswordResetTokenRepo")
	return &passwordResetTokenRepo{db: db, log: repoLog}
}

func (r *passwordResetTokenRepo) Create(dbc dbctx.Context, token *types.PasswordResetToken) (*types.PasswordResetToken, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if token == nil {
		return nil, errors.New("nil token")
	}
	if err := transaction.WithContext(dbc.Ctx).Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

// GetActiveByHash returns nil without error when no usable token matches.
func (r *passwordResetTokenRepo) GetActiveByHash(dbc dbctx.Context, userID uint, tokenHash string, now time.Time) (*types.PasswordResetToken, error) {
	transaction := dbc.Tx
	q := r.db
	if transaction != nil {
		q = transaction
	}
	q = q.WithContext(dbc.Ctx)
	if transaction != nil && q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row types.PasswordResetToken
	err := q.
		Where("user_id = ? AND token_hash = ? AND used_at IS NULL AND expires_at > ?", userID, tokenHash, now).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *passwordResetTokenRepo) MarkUsed(dbc dbctx.Context, tokenID uuid.UUID, usedAt time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.PasswordResetToken{}).
		Where("id = ? AND used_at IS NULL", tokenID).
		Update("used_at", usedAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *passwordResetTokenRepo) InvalidateForUser(dbc dbctx.Context, userID uint, usedAt time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.PasswordResetToken{}).
		Where("user_id = ? AND used_at IS NULL", userID).
		Update("used_at", usedAt).Error
}

func (r *passwordResetTokenRepo) DeleteExpired(dbc dbctx.Context, before time.Time) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("expires_at < ?", before).
		Delete(&types.PasswordResetToken{})
	return res.RowsAffected, res.Error
}
