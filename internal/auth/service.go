package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xymail/xymail-backend/internal/roles"
	"github.com/xymail/xymail-backend/internal/tempaccounts"
	"github.com/xymail/xymail-backend/internal/users"
	pkgAuth "github.com/xymail/xymail-backend/pkg/auth"
	"github.com/xymail/xymail-backend/pkg/auth/session"
	"github.com/xymail/xymail-backend/pkg/config"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/enums"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/security"
	"gorm.io/gorm"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	reservedUsernamePrefix    = "temp_"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,31}$`)

// Database is the slice of *db.Client the service needs.
type Database interface {
	db.TxRunner
	DB() *gorm.DB
}

type registrationSettings interface {
	RegistrationEnabled(ctx context.Context) (bool, error)
	DefaultRole(ctx context.Context) (enums.Role, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	DB             Database
	Settings       registrationSettings
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

// Service implements login, registration and token issuance.
type Service struct {
	db          Database
	settings    registrationSettings
	session     sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings reader required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:          params.DB,
		settings:    params.Settings,
		session:     params.SessionManager,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// Login verifies credentials and issues tokens.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	conn := s.db.DB()
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	repo := users.NewRepository(conn)
	user, err := repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if user.PasswordHash == nil || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	valid, err := security.VerifyPassword(req.Password, *user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	role, err := s.signInRole(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	tokens, err := s.IssueTokens(ctx, user.ID, role)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Tokens: *tokens, User: users.FromModel(user, role)}, nil
}

// Register creates a password account holding the configured default role.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	enabled, err := s.settings.RegistrationEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "registration is disabled")
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if !usernamePattern.MatchString(username) || strings.HasPrefix(username, reservedUsernamePrefix) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid username").
			WithDetails(map[string]string{"username": "3-32 lowercase letters, digits, dash or underscore; must not start with temp_"})
	}
	role, err := s.settings.DefaultRole(ctx)
	if err != nil {
		return nil, err
	}
	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var user *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := users.NewRepository(tx).Create(ctx, users.CreateUserDTO{
			Username:     &username,
			Name:         username,
			PasswordHash: &hash,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		if err := roles.NewRepository(tx).AssignByName(ctx, created.ID, role); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign role")
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String(), "role": string(role)}), "user registered")
	return users.FromModel(user, role), nil
}

// IssueTokens mints an access token and opens its refresh session.
func (s *Service) IssueTokens(ctx context.Context, userID uuid.UUID, role enums.Role) (*Tokens, error) {
	return s.mint(ctx, userID, role, session.NewAccessID(), "")
}

// Refresh rotates the session bound to accessID. The role is re-read so
// promotions apply, and lapsed temp accounts are refused.
func (s *Service) Refresh(ctx context.Context, accessID string, userID uuid.UUID, refreshToken string) (*Tokens, error) {
	role, err := s.signInRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	newAccessID, newRefresh, err := s.session.Rotate(ctx, accessID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	return s.mint(ctx, userID, role, newAccessID, newRefresh)
}

func (s *Service) mint(ctx context.Context, userID uuid.UUID, role enums.Role, accessID, refreshToken string) (*Tokens, error) {
	now := s.now().UTC()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if refreshToken == "" {
		if refreshToken, err = s.session.Generate(ctx, accessID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
		}
	}
	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute),
	}, nil
}

// signInRole loads the user's role and refuses users whose temp account lapsed.
func (s *Service) signInRole(ctx context.Context, userID uuid.UUID) (enums.Role, error) {
	conn := s.db.DB()
	if _, err := users.NewRepository(conn).FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	lapsed, err := tempaccounts.HasLapsed(ctx, conn, userID, s.now().UTC())
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load temp account")
	}
	if lapsed {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "temporary account has expired")
	}
	role, err := roles.NewRepository(conn).RoleForUser(ctx, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load role")
	}
	return role, nil
}
