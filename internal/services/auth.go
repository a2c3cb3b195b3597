package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/data/repos"
	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/platform/ctxutil"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
)

const MinPasswordLength = 6

type JWTClaims struct {
	jwt.RegisteredClaims
}

type AuthService interface {
	RegisterUser(ctx context.Context, user *types.User) error
	LoginUser(ctx context.Context, email, password string) (string, string, error)
	RefreshUser(ctx context.Context, refreshToken string) (string, string, error)
	LogoutUser(ctx context.Context) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	jwtSecretKey  string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	serviceLog := log.With("service", "AuthService")
	return &authService{
		db:            db,
		log:           serviceLog,
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		jwtSecretKey:  jwtSecretKey,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (as *authService) RegisterUser(ctx context.Context, user *types.User) error {
	if user == nil {
		return apierr.Validation("invalid_request", errors.New("user required"))
	}
	user.Email = normalizeEmail(user.Email)
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)

	fields := map[string][]string{}
	if user.Email == "" {
		fields["email"] = append(fields["email"], "This field may not be blank.")
	}
	if len(user.Password) < MinPasswordLength {
		fields["password"] = append(fields["password"], fmt.Sprintf("Ensure this field has at least %d characters.", MinPasswordLength))
	}
	if len(fields) > 0 {
		return apierr.InvalidFields(fields)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return apierr.Unexpected("hash_failed", err)
	}
	user.Password = string(hashed)

	return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		exists, err := as.userRepo.EmailExists(dbc, user.Email)
		if err != nil {
			return storageErr("email_lookup_failed", err)
		}
		if exists {
			return apierr.InvalidFields(fieldErrors("email", "A user with that email already exists."))
		}
		if _, err := as.userRepo.Create(dbc, []*types.User{user}); err != nil {
			if isUniqueViolation(err) {
				return apierr.InvalidFields(fieldErrors("email", "A user with that email already exists."))
			}
			return storageErr("create_user_failed", err)
		}
		as.log.Info("User registered", "user_id", user.ID)
		return nil
	})
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (string, string, error) {
	email = normalizeEmail(email)
	invalid := apierr.Unauthorized("invalid_credentials", errors.New("invalid email or password"))
	if email == "" || password == "" {
		return "", "", invalid
	}

	users, err := as.userRepo.GetByEmails(dbctx.Context{Ctx: ctx}, []string{email})
	if err != nil {
		return "", "", storageErr("user_lookup_failed", err)
	}
	if len(users) == 0 || users[0] == nil {
		return "", "", invalid
	}
	user := users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", "", invalid
	}

	var accessToken, refreshToken string
	if err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := as.pruneExpiredTokens(dbc, user.ID); err != nil {
			return err
		}
		a, r, err := as.issueTokens(dbc, user)
		if err != nil {
			return err
		}
		accessToken, refreshToken = a, r
		return nil
	}); err != nil {
		as.log.Warn("Login failed", "user_id", user.ID, "error", err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (as *authService) RefreshUser(ctx context.Context, refreshToken string) (string, string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		if rd := ctxutil.GetRequestData(ctx); rd != nil {
			refreshToken = rd.RefreshToken
		}
	}
	if refreshToken == "" {
		return "", "", apierr.Unauthorized("refresh_failed", errors.New("refresh token required"))
	}

	var accessToken, newRefreshToken string
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		found, err := as.userTokenRepo.GetByRefreshTokens(dbc, []string{refreshToken})
		if err != nil {
			return storageErr("token_lookup_failed", err)
		}
		if len(found) == 0 || found[0] == nil {
			return apierr.Unauthorized("refresh_failed", errors.New("invalid refresh token"))
		}
		existing := found[0]
		if existing.ExpiresAt.Before(time.Now().UTC()) {
			if err := as.userTokenRepo.DeleteByTokens(dbc, []*types.UserToken{existing}); err != nil {
				return storageErr("token_delete_failed", err)
			}
			return apierr.Unauthorized("refresh_failed", errors.New("refresh token expired"))
		}
		users, err := as.userRepo.GetByIDs(dbc, []uint{existing.UserID})
		if err != nil {
			return storageErr("user_lookup_failed", err)
		}
		if len(users) == 0 || users[0] == nil {
			return apierr.Unauthorized("refresh_failed", errors.New("no user found for the given refresh token"))
		}
		a, r, err := as.issueTokens(dbc, users[0])
		if err != nil {
			return err
		}
		if err := as.userTokenRepo.DeleteByTokens(dbc, []*types.UserToken{existing}); err != nil {
			return storageErr("token_delete_failed", err)
		}
		accessToken, newRefreshToken = a, r
		return nil
	})
	if err != nil {
		as.log.Warn("Refresh failed", "error", err)
		return "", "", err
	}
	return accessToken, newRefreshToken, nil
}

func (as *authService) LogoutUser(ctx context.Context) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.TokenString == "" {
		return errUnauthenticated
	}
	return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		found, err := as.userTokenRepo.GetByAccessTokens(dbc, []string{rd.TokenString})
		if err != nil {
			return storageErr("token_lookup_failed", err)
		}
		if err := as.userTokenRepo.DeleteByTokens(dbc, found); err != nil {
			return storageErr("token_delete_failed", err)
		}
		return nil
	})
}

// SetContextFromToken verifies the JWT and that its session row still exists.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, errUnauthenticated
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ctx, apierr.Unauthorized("invalid_token", fmt.Errorf("failed to parse token: %w", err))
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, apierr.Unauthorized("invalid_token", errors.New("invalid or expired token"))
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return ctx, apierr.Unauthorized("invalid_token", errors.New("invalid user id in token"))
	}

	found, err := as.userTokenRepo.GetByAccessTokens(dbctx.Context{Ctx: ctx}, []string{tokenString})
	if err != nil {
		return ctx, storageErr("token_lookup_failed", err)
	}
	if len(found) == 0 || found[0] == nil || found[0].UserID != uint(userID) {
		return ctx, apierr.Unauthorized("invalid_token", errors.New("token has been revoked"))
	}

	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString:  tokenString,
		RefreshToken: found[0].RefreshToken,
		UserID:       uint(userID),
	}), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}

func (as *authService) issueTokens(dbc dbctx.Context, user *types.User) (string, string, error) {
	accessToken, err := as.generateAccessToken(user)
	if err != nil {
		return "", "", apierr.Unexpected("token_sign_failed", err)
	}
	userToken := &types.UserToken{
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: uuid.New().String(),
		ExpiresAt:    time.Now().UTC().Add(as.refreshTTL),
	}
	if _, err := as.userTokenRepo.Create(dbc, []*types.UserToken{userToken}); err != nil {
		return "", "", storageErr("create_token_failed", err)
	}
	return userToken.AccessToken, userToken.RefreshToken, nil
}

func (as *authService) pruneExpiredTokens(dbc dbctx.Context, userID uint) error {
	tokens, err := as.userTokenRepo.GetByUserIDs(dbc, []uint{userID})
	if err != nil {
		return storageErr("token_lookup_failed", err)
	}
	now := time.Now().UTC()
	var expired []*types.UserToken
	for _, t := range tokens {
		if t != nil && t.ExpiresAt.Before(now) {
			expired = append(expired, t)
		}
	}
	if err := as.userTokenRepo.DeleteByTokens(dbc, expired); err != nil {
		return storageErr("token_delete_failed", err)
	}
	return nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}
