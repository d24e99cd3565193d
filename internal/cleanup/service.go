// Package cleanup sweeps expired temp accounts, card keys and emails.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/xymail/xymail-backend/internal/cardkeys"
	"github.com/xymail/xymail-backend/internal/emails"
	"github.com/xymail/xymail-backend/internal/settings"
	"github.com/xymail/xymail-backend/internal/tempaccounts"
	"github.com/xymail/xymail-backend/internal/users"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/db/models"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	PhaseTempAccounts      = "temp_accounts"
	PhaseUsedExpiredKeys   = "used_expired_card_keys"
	PhaseUnusedExpiredKeys = "unused_expired_card_keys"
	PhaseExpiredEmails     = "expired_emails"
)

// Database is the slice of *db.Client the service needs.
type Database interface {
	db.TxRunner
	DB() *gorm.DB
}

type flagReader interface {
	CleanupFlags(ctx context.Context) (settings.CleanupFlags, error)
}

// PhaseReport is the outcome of one sweep phase.
type PhaseReport struct {
	Enabled   bool  `json:"enabled"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Report is the outcome of a sweep.
type Report struct {
	TempAccounts      PhaseReport `json:"tempAccounts"`
	UsedExpiredKeys   PhaseReport `json:"usedExpiredCardKeys"`
	UnusedExpiredKeys PhaseReport `json:"unusedExpiredCardKeys"`
	ExpiredEmails     PhaseReport `json:"expiredEmails"`
	RanAt             time.Time   `json:"ranAt"`
}

// Phases lists the phase reports keyed by phase name.
func (r Report) Phases() map[string]PhaseReport {
	return map[string]PhaseReport{
		PhaseTempAccounts:      r.TempAccounts,
		PhaseUsedExpiredKeys:   r.UsedExpiredKeys,
		PhaseUnusedExpiredKeys: r.UnusedExpiredKeys,
		PhaseExpiredEmails:     r.ExpiredEmails,
	}
}

// Stats summarizes what a sweep would currently find.
type Stats struct {
	ExpiredCount        int64     `json:"expiredCount"`
	TotalCount          int64     `json:"totalCount"`
	ExpiredTempAccounts int64     `json:"expiredTempAccounts"`
	LastChecked         time.Time `json:"lastChecked"`
}

// ServiceParams bundles the cleanup dependencies.
type ServiceParams struct {
	DB       Database
	Settings flagReader
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service runs cleanup sweeps.
type Service struct {
	db       Database
	settings flagReader
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

// Sweep runs every enabled phase. Temp accounts are handled row by row; a
// failing row is logged and skipped and its error is included in the
// combined error returned with the report.
func (s *Service) Sweep(ctx context.Context) (Report, error) {
	now := s.now().UTC()
	report := Report{RanAt: now}

	flags, err := s.settings.CleanupFlags(ctx)
	if err != nil {
		return report, err
	}
	report.TempAccounts.Enabled = flags.ExpiredTempAccounts
	report.UsedExpiredKeys.Enabled = flags.DeleteUsedExpiredKeys
	report.UnusedExpiredKeys.Enabled = flags.DeleteUnusedExpiredKeys
	report.ExpiredEmails.Enabled = flags.DeleteExpiredEmails

	var errs error
	if flags.ExpiredTempAccounts {
		errs = multierr.Append(errs, s.sweepTempAccounts(ctx, now, &report.TempAccounts))
	}

	keys := cardkeys.NewRepository(s.db.DB())
	if flags.DeleteUsedExpiredKeys {
		errs = multierr.Append(errs, s.bulkPhase(ctx, PhaseUsedExpiredKeys, &report.UsedExpiredKeys, func() (int64, error) {
			return keys.DeleteExpired(ctx, now, true)
		}))
	}
	if flags.DeleteUnusedExpiredKeys {
		errs = multierr.Append(errs, s.bulkPhase(ctx, PhaseUnusedExpiredKeys, &report.UnusedExpiredKeys, func() (int64, error) {
			return keys.DeleteExpired(ctx, now, false)
		}))
	}
	if flags.DeleteExpiredEmails {
		errs = multierr.Append(errs, s.bulkPhase(ctx, PhaseExpiredEmails, &report.ExpiredEmails, func() (int64, error) {
			return emails.NewRepository(s.db.DB()).DeleteExpired(ctx, now)
		}))
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"temp_accounts":            report.TempAccounts.Processed,
		"temp_accounts_failed":     report.TempAccounts.Failed,
		"used_expired_card_keys":   report.UsedExpiredKeys.Processed,
		"unused_expired_card_keys": report.UnusedExpiredKeys.Processed,
		"expired_emails":           report.ExpiredEmails.Processed,
	})
	s.logg.Info(logCtx, "cleanup sweep complete")
	return report, errs
}

func (s *Service) sweepTempAccounts(ctx context.Context, now time.Time, phase *PhaseReport) error {
	accounts, err := tempaccounts.NewRepository(s.db.DB()).ListExpiredActive(ctx, now)
	if err != nil {
		phase.Failed++
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired temp accounts")
	}

	var errs error
	for _, account := range accounts {
		if err := s.expireAccount(ctx, account); err != nil {
			phase.Failed++
			logCtx := s.logg.WithField(ctx, "temp_account_id", account.ID.String())
			s.logg.Error(logCtx, "expire temp account failed", err)
			errs = multierr.Append(errs, fmt.Errorf("temp account %s: %w", account.ID, err))
			continue
		}
		phase.Processed++
	}
	return errs
}

// expireAccount resets the user's card keys, deletes the user and then
// deactivates the account, all in one transaction.
func (s *Service) expireAccount(ctx context.Context, account models.TempAccount) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if account.UserID != nil {
			userID := *account.UserID
			if _, err := cardkeys.NewRepository(tx).ResetForUser(ctx, userID); err != nil {
				return fmt.Errorf("reset card keys: %w", err)
			}
			if _, err := users.NewRepository(tx).Delete(ctx, userID); err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
		}
		if err := tempaccounts.NewRepository(tx).Deactivate(ctx, account.ID); err != nil {
			return fmt.Errorf("deactivate: %w", err)
		}
		return nil
	})
}

func (s *Service) bulkPhase(ctx context.Context, name string, phase *PhaseReport, run func() (int64, error)) error {
	n, err := run()
	if err != nil {
		phase.Failed++
		s.logg.Error(s.logg.WithField(ctx, "phase", name), "cleanup phase failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	phase.Processed = n
	return nil
}

// Stats counts expired and total card keys plus expired active temp accounts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	now := s.now().UTC()
	keys := cardkeys.NewRepository(s.db.DB())
	expired, err := keys.CountExpired(ctx, now)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count expired card keys")
	}
	total, err := keys.Count(ctx)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count card keys")
	}
	accounts, err := tempaccounts.NewRepository(s.db.DB()).CountExpiredActive(ctx, now)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count expired temp accounts")
	}
	return Stats{
		ExpiredCount:        expired,
		TotalCount:          total,
		ExpiredTempAccounts: accounts,
		LastChecked:         now,
	}, nil
}
