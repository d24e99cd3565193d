// Package activation turns a card key into a temp account.
package activation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/xymail/xymail-backend/internal/cardkeys"
	"github.com/xymail/xymail-backend/internal/emails"
	"github.com/xymail/xymail-backend/internal/roles"
	"github.com/xymail/xymail-backend/internal/tempaccounts"
	"github.com/xymail/xymail-backend/internal/users"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/enums"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
	"gorm.io/gorm"
)

// TempAccountTTL is how long an activated account and its address live. It
// does not depend on the card key's own expiry.
const TempAccountTTL = 7 * 24 * time.Hour

const (
	usernameAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	usernameSuffixLen = 8
)

// Result is returned for a successful activation.
type Result struct {
	UserID       uuid.UUID `json:"userId"`
	EmailAddress string    `json:"emailAddress"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// ServiceParams bundles the activation dependencies.
type ServiceParams struct {
	DB     db.TxRunner
	Logger *logger.Logger
	Now    func() time.Time
}

// Service activates card keys.
type Service struct {
	db   db.TxRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService validates the dependencies and builds the service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{db: params.DB, logg: params.Logger, now: now}, nil
}

// Activate consumes code and creates the user, role assignment, email and
// temp account in one transaction.
func (s *Service) Activate(ctx context.Context, code string) (*Result, error) {
	code = cardkeys.NormalizeCode(code)
	if !cardkeys.IsCodeFormat(code) {
		return nil, cardkeys.ErrCardKeyNotFound
	}

	now := s.now().UTC()
	expiresAt := now.Add(TempAccountTTL)
	var result *Result

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		keyRepo := cardkeys.NewRepository(tx)
		found, err := keyRepo.FindByCodeForUpdate(ctx, code)
		key, err := cardkeys.Check(found, err, now)
		if err != nil {
			return err
		}

		user, err := createTempUser(ctx, users.NewRepository(tx), key.EmailAddress)
		if err != nil {
			return err
		}
		if err := roles.NewRepository(tx).AssignByName(ctx, user.ID, enums.RoleTempUser); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign temp role")
		}

		email := &models.Email{Address: key.EmailAddress, UserID: user.ID, ExpiresAt: expiresAt}
		if err := emails.NewRepository(tx).Create(ctx, email); err != nil {
			if db.IsUniqueViolation(err, "emails_address_key") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email address is already in use")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create email")
		}

		userID, keyID := user.ID, key.ID
		account := &models.TempAccount{
			UserID:       &userID,
			CardKeyID:    &keyID,
			EmailAddress: key.EmailAddress,
			ExpiresAt:    expiresAt,
			IsActive:     true,
		}
		if err := tempaccounts.NewRepository(tx).Create(ctx, account); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create temp account")
		}

		marked, err := keyRepo.MarkUsed(ctx, key.ID, user.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark card key used")
		}
		if !marked {
			return cardkeys.ErrCardKeyUsed
		}

		result = &Result{UserID: user.ID, EmailAddress: key.EmailAddress, ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		logCtx := s.logg.WithField(ctx, "code_suffix", codeSuffix(code))
		s.logg.Warn(logCtx, "card key activation refused: "+err.Error())
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":       result.UserID.String(),
		"email_address": result.EmailAddress,
		"code_suffix":   codeSuffix(code),
	})
	s.logg.Info(logCtx, "card key activated")
	return result, nil
}

func createTempUser(ctx context.Context, repo *users.Repository, address string) (*models.User, error) {
	suffix, err := gonanoid.Generate(usernameAlphabet, usernameSuffixLen)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate username")
	}
	local, _, _ := strings.Cut(address, "@")
	username := "temp_" + suffix
	email := address
	user, err := repo.Create(ctx, users.CreateUserDTO{
		Username: &username,
		Name:     "temp_" + local,
		Email:    &email,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a user with this address already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create temp user")
	}
	return user, nil
}

// codeSuffix keeps the last four characters so logs never hold a usable code.
func codeSuffix(code string) string {
	if len(code) <= 4 {
		return "***"
	}
	return "***" + code[len(code)-4:]
}
