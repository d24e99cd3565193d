package emails

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/xymail/xymail-backend/internal/tempaccounts"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/enums"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/pagination"
	"gorm.io/gorm"
)

const (
	localAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	randomLocalLen = 8
)

// PermanentExpiry marks addresses created without an expiry.
var PermanentExpiry = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// AllowedExpiryHours are the lifetimes users may pick; zero is permanent.
var AllowedExpiryHours = []int{1, 24, 72, 0}

var localPartPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

var ErrEmailNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "email not found")

type configReader interface {
	EmailDomains(ctx context.Context) ([]string, error)
	MaxEmails(ctx context.Context) (int, error)
}

// ServiceParams bundles the email service dependencies.
type ServiceParams struct {
	DB       interface{ DB() *gorm.DB }
	Settings configReader
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service manages a user's addresses and their messages.
type Service struct {
	db       interface{ DB() *gorm.DB }
	settings configReader
	logg     *logger.Logger
	now      func() time.Time
}

// NewService validates the dependencies and builds the service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings reader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{db: params.DB, settings: params.Settings, logg: params.Logger, now: now}, nil
}

// EmailDTO is the transport shape of an address.
type EmailDTO struct {
	ID          uuid.UUID `json:"id"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	IsPermanent bool      `json:"isPermanent"`
}

func toDTO(e models.Email) EmailDTO {
	return EmailDTO{
		ID:          e.ID,
		Address:     e.Address,
		CreatedAt:   e.CreatedAt,
		ExpiresAt:   e.ExpiresAt,
		IsPermanent: !e.ExpiresAt.Before(PermanentExpiry),
	}
}

// List returns the caller's unexpired addresses. Restricted temp users only
// ever see their bound address.
func (s *Service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[EmailDTO], error) {
	conn := s.db.DB()
	now := s.now().UTC()
	filter := ListFilter{UserID: userID, Now: now}

	restriction, err := tempaccounts.Restriction(ctx, conn, userID, now)
	if err != nil {
		return pagination.Page[EmailDTO]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load temp account")
	}
	if restriction != nil {
		filter.Address = restriction.EmailAddress
	}

	rows, total, err := NewRepository(conn).ListForUser(ctx, filter, params)
	if err != nil {
		return pagination.Page[EmailDTO]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list emails")
	}
	out := make([]EmailDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return pagination.NewPage(out, params, total), nil
}

// CreateInput requests a new address. An empty Name picks a random local part.
type CreateInput struct {
	Name        string `json:"name" validate:"omitempty,max=64"`
	Domain      string `json:"domain" validate:"required,fqdn"`
	ExpiryHours int    `json:"expiryHours" validate:"min=0"`
}

// Create adds an address for the caller.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, role enums.Role, input CreateInput) (*EmailDTO, error) {
	conn := s.db.DB()
	now := s.now().UTC()

	restriction, err := tempaccounts.Restriction(ctx, conn, userID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load temp account")
	}
	if restriction != nil || role == enums.RoleTempUser {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "temporary accounts cannot create addresses")
	}

	if !slices.Contains(AllowedExpiryHours, input.ExpiryHours) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid expiry").
			WithDetails(map[string]string{"expiryHours": "must be one of 1, 24, 72 or 0"})
	}

	domain := strings.ToLower(strings.TrimSpace(input.Domain))
	domains, err := s.settings.EmailDomains(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(domains, domain) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "domain not available").
			WithDetails(map[string]any{"domain": domain, "allowed": domains})
	}

	local := strings.ToLower(strings.TrimSpace(input.Name))
	if local == "" {
		if local, err = gonanoid.Generate(localAlphabet, randomLocalLen); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate address")
		}
	}
	if !localPartPattern.MatchString(local) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid address name").
			WithDetails(map[string]string{"name": "may only contain letters, digits, dot, dash and underscore"})
	}

	repo := NewRepository(conn)
	if role != enums.RoleEmperor {
		limit, err := s.settings.MaxEmails(ctx)
		if err != nil {
			return nil, err
		}
		count, err := repo.CountActiveForUser(ctx, userID, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count emails")
		}
		if count >= int64(limit) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "address limit reached").
				WithDetails(map[string]int{"maxEmails": limit})
		}
	}

	expiresAt := PermanentExpiry
	if input.ExpiryHours > 0 {
		expiresAt = now.Add(time.Duration(input.ExpiryHours) * time.Hour)
	}
	email := &models.Email{Address: local + "@" + domain, UserID: userID, ExpiresAt: expiresAt}
	if err := repo.Create(ctx, email); err != nil {
		if db.IsUniqueViolation(err, "emails_address_key") || db.IsUniqueViolation(err, "emails.address") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "address already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create email")
	}
	dto := toDTO(*email)
	return &dto, nil
}

// Owned loads emailID when the caller may read it.
func (s *Service) Owned(ctx context.Context, userID, emailID uuid.UUID) (*models.Email, error) {
	conn := s.db.DB()
	email, err := NewRepository(conn).FindByID(ctx, emailID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load email")
	}
	if email.UserID != userID {
		return nil, ErrEmailNotFound
	}
	restriction, err := tempaccounts.Restriction(ctx, conn, userID, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load temp account")
	}
	if restriction != nil && restriction.EmailAddress != email.Address {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "temporary accounts may only read their bound address")
	}
	return email, nil
}
