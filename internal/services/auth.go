package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/secondbrain-backend/internal/data/repos"
	"github.com/yungbote/secondbrain-backend/internal/data/repos/repoerr"
	types "github.com/yungbote/secondbrain-backend/internal/domain"
	apperr "github.com/yungbote/secondbrain-backend/internal/pkg/errors"
	"github.com/yungbote/secondbrain-backend/internal/platform/ctxutil"
	"github.com/yungbote/secondbrain-backend/internal/platform/dbctx"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

const bcryptCost = 10

type AuthService interface {
	Signup(ctx context.Context, username, email, password string) (*types.User, error)
	Signin(ctx context.Context, username, password string) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type JWTClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type authService struct {
	log          *logger.Logger
	userRepo     repos.UserRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(log *logger.Logger, userRepo repos.UserRepo, jwtSecretKey string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (as *authService) Signup(ctx context.Context, username, email, password string) (*types.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}
	dbc := dbctx.Context{Ctx: ctx}
	taken, err := as.userRepo.UsernameExists(dbc, username)
	if err != nil {
		return nil, apperr.External(apperr.ServiceDocumentStore, err)
	}
	if taken {
		return nil, fmt.Errorf("%w: username already taken", apperr.ErrConflict)
	}
	if email != "" {
		taken, err = as.userRepo.EmailExists(dbc, email)
		if err != nil {
			return nil, apperr.External(apperr.ServiceDocumentStore, err)
		}
		if taken {
			return nil, fmt.Errorf("%w: email already registered", apperr.ErrConflict)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &types.User{ID: uuid.New(), Username: username, Password: string(hash)}
	if email != "" {
		user.Email = &email
	}
	if _, err := as.userRepo.Create(dbc, []*types.User{user}); err != nil {
		// A concurrent signup can still win the unique index.
		if repoerr.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username or email already registered", apperr.ErrConflict)
		}
		return nil, apperr.External(apperr.ServiceDocumentStore, err)
	}
	as.log.Info("user signed up", "user_id", user.ID.String())
	return user, nil
}

func (as *authService) Signin(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", apperr.Validation("username and password are required")
	}
	user, err := as.userRepo.GetByUsername(dbctx.Context{Ctx: ctx}, username)
	if err != nil {
		return "", apperr.External(apperr.ServiceDocumentStore, err)
	}
	if user == nil {
		return "", fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthorized)
	}
	return as.generateAccessToken(user)
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, fmt.Errorf("%w: token is required", apperr.ErrUnauthorized)
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ctx, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, fmt.Errorf("%w: invalid or expired token", apperr.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("%w: invalid subject", apperr.ErrUnauthorized)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Username:    claims.Username,
	}), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}
