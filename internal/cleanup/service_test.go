package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xymail/xymail-backend/internal/activation"
	"github.com/xymail/xymail-backend/internal/cardkeys"
	"github.com/xymail/xymail-backend/internal/settings"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/db/dbtest"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/logger"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type fixture struct {
	client   *db.Client
	clock    *clock
	provider *settings.MemoryProvider
	keys     *cardkeys.Service
	activate *activation.Service
	cleanup  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	clk := &clock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	provider := settings.NewMemoryProvider(nil)
	cfg, err := settings.NewService(provider)
	require.NoError(t, err)

	keys, err := cardkeys.NewService(cardkeys.ServiceParams{DB: client, Settings: cfg, Logger: logger.Nop(), Now: clk.Now})
	require.NoError(t, err)
	act, err := activation.NewService(activation.ServiceParams{DB: client, Logger: logger.Nop(), Now: clk.Now})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{DB: client, Settings: cfg, Logger: logger.Nop(), Now: clk.Now})
	require.NoError(t, err)
	return &fixture{client: client, clock: clk, provider: provider, keys: keys, activate: act, cleanup: svc}
}

func (f *fixture) generate(t *testing.T, address string, days int) string {
	t.Helper()
	result, err := f.keys.GenerateBatch(context.Background(), cardkeys.GenerateInput{
		EmailAddresses: []string{address},
		ExpiryDays:     days,
	})
	require.NoError(t, err)
	return result.CardKeys[0].Code
}

func TestSweepExpiresTempAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.generate(t, "a@x.com", 30)
	activated, err := f.activate.Activate(ctx, code)
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(activation.TempAccountTTL + time.Hour)
	report, err := f.cleanup.Sweep(ctx)
	require.NoError(t, err)
	require.True(t, report.TempAccounts.Enabled)
	require.EqualValues(t, 1, report.TempAccounts.Processed)
	require.Zero(t, report.TempAccounts.Failed)

	conn := f.client.DB()
	var users int64
	require.NoError(t, conn.Model(&models.User{}).Where("id = ?", activated.UserID).Count(&users).Error)
	require.Zero(t, users)

	var account models.TempAccount
	require.NoError(t, conn.Where("email_address = ?", "a@x.com").First(&account).Error)
	require.False(t, account.IsActive)
	require.Nil(t, account.UserID)

	var key models.CardKey
	require.NoError(t, conn.Where("code = ?", code).First(&key).Error)
	require.False(t, key.IsUsed)
	require.Nil(t, key.UsedBy)
	require.Nil(t, key.UsedAt)

	var emails int64
	require.NoError(t, conn.Model(&models.Email{}).Where("address = ?", "a@x.com").Count(&emails).Error)
	require.Zero(t, emails)

	again, err := f.cleanup.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, again.TempAccounts.Processed)
}

func TestSweepUnusedExpiredKeyFlag(t *testing.T) {
	for _, tc := range []struct {
		flag    string
		survive bool
	}{
		{flag: "false", survive: true},
		{flag: "true", survive: false},
		{flag: "", survive: false},
	} {
		t.Run("flag="+tc.flag, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			if tc.flag != "" {
				require.NoError(t, f.provider.Put(ctx, settings.KeyCleanupDeleteUnusedExpiredKeys, tc.flag))
			}
			code := f.generate(t, "old@x.com", 1)

			f.clock.now = f.clock.now.Add(48 * time.Hour)
			report, err := f.cleanup.Sweep(ctx)
			require.NoError(t, err)
			require.Equal(t, !tc.survive, report.UnusedExpiredKeys.Enabled)

			var count int64
			require.NoError(t, f.client.DB().Model(&models.CardKey{}).Where("code = ?", code).Count(&count).Error)
			if tc.survive {
				require.EqualValues(t, 1, count)
			} else {
				require.Zero(t, count)
				require.EqualValues(t, 1, report.UnusedExpiredKeys.Processed)
			}
		})
	}
}

func TestSweepUsedExpiredKeysAndEmails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.provider.Put(ctx, settings.KeyCleanupExpiredTempAccounts, "false"))

	code := f.generate(t, "used@x.com", 1)
	_, err := f.activate.Activate(ctx, code)
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(activation.TempAccountTTL + time.Hour)
	report, err := f.cleanup.Sweep(ctx)
	require.NoError(t, err)
	require.False(t, report.TempAccounts.Enabled)
	require.EqualValues(t, 1, report.UsedExpiredKeys.Processed)
	require.EqualValues(t, 1, report.ExpiredEmails.Processed)

	conn := f.client.DB()
	for _, model := range []any{&models.CardKey{}, &models.Email{}} {
		var count int64
		require.NoError(t, conn.Model(model).Count(&count).Error)
		require.Zero(t, count, "%T should be gone", model)
	}

	var account models.TempAccount
	require.NoError(t, conn.Where("email_address = ?", "used@x.com").First(&account).Error)
	require.Nil(t, account.CardKeyID)
	require.True(t, account.IsActive)
}

func TestSweepExpiresAccountAfterItsKeyWasPurged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.generate(t, "a@x.com", 1)
	activated, err := f.activate.Activate(ctx, code)
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(48 * time.Hour)
	first, err := f.cleanup.Sweep(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, first.UsedExpiredKeys.Processed)
	require.Zero(t, first.TempAccounts.Processed)

	conn := f.client.DB()
	var account models.TempAccount
	require.NoError(t, conn.Where("email_address = ?", "a@x.com").First(&account).Error)
	require.True(t, account.IsActive)
	require.Nil(t, account.CardKeyID)

	f.clock.now = f.clock.now.Add(activation.TempAccountTTL)
	second, err := f.cleanup.Sweep(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, second.TempAccounts.Processed)

	var users int64
	require.NoError(t, conn.Model(&models.User{}).Where("id = ?", activated.UserID).Count(&users).Error)
	require.Zero(t, users)
	require.NoError(t, conn.Where("id = ?", account.ID).First(&account).Error)
	require.False(t, account.IsActive)

	reissued := f.generate(t, "a@x.com", 30)
	again, err := f.activate.Activate(ctx, reissued)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", again.EmailAddress)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.generate(t, "short@x.com", 1)
	f.generate(t, "long@x.com", 30)

	f.clock.now = f.clock.now.Add(48 * time.Hour)
	stats, err := f.cleanup.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.ExpiredCount)
	require.EqualValues(t, 2, stats.TotalCount)
	require.Zero(t, stats.ExpiredTempAccounts)
	require.Equal(t, f.clock.now, stats.LastChecked)
}

type brokenFlags struct{}

func (brokenFlags) CleanupFlags(context.Context) (settings.CleanupFlags, error) {
	return settings.CleanupFlags{}, errors.New("redis unavailable")
}

func TestSweepFailsWhenFlagsUnavailable(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{DB: client, Settings: brokenFlags{}, Logger: logger.Nop()})
	require.NoError(t, err)
	_, err = svc.Sweep(context.Background())
	require.EqualError(t, err, "redis unavailable")
}
