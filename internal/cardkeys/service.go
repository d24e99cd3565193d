package cardkeys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/xymail/xymail-backend/internal/emails"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/enums"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/pagination"
	"gorm.io/gorm"
)

const (
	MinExpiryDays = 1
	MaxExpiryDays = 365
	MaxBatchSize  = 500
)

var (
	ErrCardKeyNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "card key not found")
	ErrCardKeyUsed     = pkgerrors.New(pkgerrors.CodeStateConflict, "card key already used")
	ErrCardKeyExpired  = pkgerrors.New(pkgerrors.CodeStateConflict, "card key expired")
)

// Database is the slice of *db.Client the service needs.
type Database interface {
	db.TxRunner
	DB() *gorm.DB
}

type defaultsReader interface {
	CardKeyDefaultDays(ctx context.Context) (int, error)
}

// ServiceParams bundles the card key service dependencies.
type ServiceParams struct {
	DB       Database
	Settings defaultsReader
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service implements card key generation, validation and administration.
type Service struct {
	db       Database
	settings defaultsReader
	logg     *logger.Logger
	now      func() time.Time
	validate *validator.Validate
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
	return &Service{
		db:       params.DB,
		settings: params.Settings,
		logg:     params.Logger,
		now:      now,
		validate: validator.New(),
	}, nil
}

// Check applies the lookup rules shared by Validate and activation. The used
// check wins over the expiry check.
func Check(key *models.CardKey, err error, now time.Time) (*models.CardKey, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardKeyNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load card key")
	}
	if key.IsUsed {
		return nil, ErrCardKeyUsed
	}
	if key.IsExpired(now) {
		return nil, ErrCardKeyExpired
	}
	return key, nil
}

// Validate returns the key when it can still be activated.
func (s *Service) Validate(ctx context.Context, code string) (*models.CardKey, error) {
	code = NormalizeCode(code)
	if !IsCodeFormat(code) {
		return nil, ErrCardKeyNotFound
	}
	key, err := NewRepository(s.db.DB()).FindByCode(ctx, code)
	return Check(key, err, s.now().UTC())
}

// GenerateInput is the batch generation request.
type GenerateInput struct {
	EmailAddresses          []string `json:"emailAddresses" validate:"required,min=1,max=500,dive,required"`
	ExpiryDays              int      `json:"expiryDays" validate:"omitempty,min=1,max=365"`
	AutoReleaseEmperorOwned bool     `json:"autoReleaseEmperorOwned"`
}

// GeneratedKey is one key in a batch response.
type GeneratedKey struct {
	Code         string    `json:"code"`
	EmailAddress string    `json:"emailAddress"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// GenerateResult is the batch generation response.
type GenerateResult struct {
	BatchID  string         `json:"batchId"`
	CardKeys []GeneratedKey `json:"cardKeys"`
	Warnings []string       `json:"warnings,omitempty"`
}

// GenerateBatch creates one key per address inside a single transaction.
func (s *Service) GenerateBatch(ctx context.Context, input GenerateInput) (*GenerateResult, error) {
	addresses, err := s.normalizeAddresses(input.EmailAddresses)
	if err != nil {
		return nil, err
	}
	days := input.ExpiryDays
	if days == 0 {
		if days, err = s.settings.CardKeyDefaultDays(ctx); err != nil {
			return nil, err
		}
	}
	if days < MinExpiryDays || days > MaxExpiryDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid expiry").
			WithDetails(map[string]string{"expiryDays": fmt.Sprintf("must be between %d and %d", MinExpiryDays, MaxExpiryDays)})
	}

	now := s.now().UTC()
	expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)
	batchID := ulid.Make().String()
	result := &GenerateResult{BatchID: batchID}

	keys := make([]models.CardKey, 0, len(addresses))
	for _, address := range addresses {
		code, err := GenerateCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
		}
		keys = append(keys, models.CardKey{
			Code:         code,
			EmailAddress: address,
			BatchID:      batchID,
			ExpiresAt:    expiresAt,
		})
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		keyRepo := NewRepository(tx)
		emailRepo := emails.NewRepository(tx)

		bound, err := keyRepo.BoundAddresses(ctx, addresses)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check bound addresses")
		}
		if len(bound) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "addresses already have card keys").
				WithDetails(map[string]any{"emailAddresses": bound})
		}

		existing, err := emailRepo.ListByAddressesWithOwner(ctx, addresses)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing emails")
		}
		release, warnings, err := releasePlan(existing, input.AutoReleaseEmperorOwned)
		if err != nil {
			return err
		}
		if _, err := emailRepo.DeleteByIDs(ctx, release); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release emails")
		}
		result.Warnings = warnings

		if err := keyRepo.CreateBatch(ctx, keys); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "card key collision")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert card keys")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.CardKeys = make([]GeneratedKey, 0, len(keys))
	for _, key := range keys {
		result.CardKeys = append(result.CardKeys, GeneratedKey{
			Code:         key.Code,
			EmailAddress: key.EmailAddress,
			ExpiresAt:    key.ExpiresAt,
		})
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"batch_id":    batchID,
		"count":       len(keys),
		"expiry_days": days,
		"released":    len(result.Warnings),
	})
	s.logg.Info(logCtx, "card key batch generated")
	return result, nil
}

// releasePlan decides which existing emails block generation and which can be
// released. Only emperor-owned rows are releasable, and only on request.
func releasePlan(existing []emails.OwnedEmail, autoRelease bool) ([]uuid.UUID, []string, error) {
	var occupied, emperorOwned []string
	var release []uuid.UUID
	for _, row := range existing {
		if row.EffectiveOwnerRole() != enums.RoleEmperor {
			occupied = append(occupied, row.Address)
			continue
		}
		emperorOwned = append(emperorOwned, row.Address)
		release = append(release, row.ID)
	}
	if len(occupied) > 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "addresses are in use by other users").
			WithDetails(map[string]any{"emailAddresses": occupied})
	}
	if len(emperorOwned) == 0 {
		return nil, nil, nil
	}
	if !autoRelease {
		return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "addresses are owned by an administrator; set autoReleaseEmperorOwned to release them").
			WithDetails(map[string]any{"emailAddresses": emperorOwned})
	}
	warnings := make([]string, 0, len(emperorOwned))
	for _, address := range emperorOwned {
		warnings = append(warnings, fmt.Sprintf("released %s from its administrator owner", address))
	}
	return release, warnings, nil
}

func (s *Service) normalizeAddresses(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one email address is required")
	}
	if len(raw) > MaxBatchSize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d addresses per batch", MaxBatchSize))
	}
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	var invalid, duplicate []string
	for _, value := range raw {
		address := strings.ToLower(strings.TrimSpace(value))
		if err := s.validate.Var(address, "required,email"); err != nil {
			invalid = append(invalid, value)
			continue
		}
		if _, dup := seen[address]; dup {
			duplicate = append(duplicate, address)
			continue
		}
		seen[address] = struct{}{}
		out = append(out, address)
	}
	if len(invalid) > 0 || len(duplicate) > 0 {
		details := map[string]any{}
		if len(invalid) > 0 {
			details["invalid"] = invalid
		}
		if len(duplicate) > 0 {
			details["duplicate"] = duplicate
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email addresses").WithDetails(details)
	}
	return out, nil
}

// UsedBySummary identifies the user that consumed a key.
type UsedBySummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Username *string   `json:"username,omitempty"`
}

// KeyView is the admin listing shape of a key.
type KeyView struct {
	ID           uuid.UUID      `json:"id"`
	Code         string         `json:"code"`
	EmailAddress string         `json:"emailAddress"`
	BatchID      string         `json:"batchId"`
	IsUsed       bool           `json:"isUsed"`
	IsExpired    bool           `json:"isExpired"`
	UsedBy       *UsedBySummary `json:"usedBy"`
	UsedAt       *time.Time     `json:"usedAt"`
	CreatedAt    time.Time      `json:"createdAt"`
	ExpiresAt    time.Time      `json:"expiresAt"`
}

// List returns a page of keys. status is empty or one of used, unused, expired.
func (s *Service) List(ctx context.Context, params pagination.Params, status string) (pagination.Page[KeyView], error) {
	switch status {
	case "", StatusUsed, StatusUnused, StatusExpired:
	default:
		return pagination.Page[KeyView]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").
			WithDetails(map[string]string{"status": "must be one of used, unused, expired"})
	}
	now := s.now().UTC()
	rows, total, err := NewRepository(s.db.DB()).List(ctx, params, status, now)
	if err != nil {
		return pagination.Page[KeyView]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list card keys")
	}
	views := make([]KeyView, 0, len(rows))
	for _, row := range rows {
		view := KeyView{
			ID:           row.ID,
			Code:         row.Code,
			EmailAddress: row.EmailAddress,
			BatchID:      row.BatchID,
			IsUsed:       row.IsUsed,
			IsExpired:    row.IsExpired(now),
			UsedAt:       row.UsedAt,
			CreatedAt:    row.CreatedAt,
			ExpiresAt:    row.ExpiresAt,
		}
		if row.UsedBy != nil && row.UsedByName != nil {
			view.UsedBy = &UsedBySummary{ID: *row.UsedBy, Name: *row.UsedByName, Username: row.UsedByUsername}
		}
		views = append(views, view)
	}
	return pagination.NewPage(views, params, total), nil
}

// Delete removes a key unless it is used and still within its validity.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	repo := NewRepository(s.db.DB())
	key, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCardKeyNotFound
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load card key")
	}
	if key.IsUsed && !key.IsExpired(s.now().UTC()) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "used card keys cannot be deleted before they expire")
	}
	if err := repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete card key")
	}
	return nil
}
