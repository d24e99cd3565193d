package cardkeys

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xymail/xymail-backend/internal/roles"
	"github.com/xymail/xymail-backend/internal/settings"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/db/dbtest"
	"github.com/xymail/xymail-backend/pkg/db/models"
	"github.com/xymail/xymail-backend/pkg/enums"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/pagination"
)

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, seed map[string]string) (*Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	cfg, err := settings.NewService(settings.NewMemoryProvider(seed))
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		DB:       client,
		Settings: cfg,
		Logger:   logger.Nop(),
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, client
}

func createOwnedEmail(t *testing.T, client *db.Client, address string, role enums.Role) models.Email {
	t.Helper()
	user := models.User{Name: "owner-" + address, IsActive: true}
	require.NoError(t, client.DB().Create(&user).Error)
	if role != "" {
		require.NoError(t, roles.NewRepository(client.DB()).AssignByName(context.Background(), user.ID, role))
	}
	email := models.Email{Address: address, UserID: user.ID, ExpiresAt: fixedNow.Add(time.Hour)}
	require.NoError(t, client.DB().Create(&email).Error)
	return email
}

func TestGenerateBatchProducesDistinctCodes(t *testing.T) {
	svc, client := newTestService(t, nil)
	ctx := context.Background()

	input := GenerateInput{
		EmailAddresses: []string{"A@x.com", " b@x.com", "c@x.com"},
		ExpiryDays:     30,
	}
	result, err := svc.GenerateBatch(ctx, input)
	require.NoError(t, err)
	require.Len(t, result.CardKeys, 3)
	require.Len(t, result.BatchID, 26)

	codes := map[string]struct{}{}
	for _, key := range result.CardKeys {
		require.True(t, IsCodeFormat(key.Code), "bad code %q", key.Code)
		require.Equal(t, fixedNow.Add(30*24*time.Hour), key.ExpiresAt)
		codes[key.Code] = struct{}{}
	}
	require.Len(t, codes, 3)
	require.Equal(t, "a@x.com", result.CardKeys[0].EmailAddress)

	var stored []models.CardKey
	require.NoError(t, client.DB().Find(&stored).Error)
	require.Len(t, stored, 3)
	for _, key := range stored {
		require.Equal(t, result.BatchID, key.BatchID)
		require.False(t, key.IsUsed)
	}
}

func TestGenerateBatchUsesConfiguredDefaultDays(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{settings.KeyCardKeyDefaultDays: "3"})
	result, err := svc.GenerateBatch(context.Background(), GenerateInput{EmailAddresses: []string{"d@x.com"}})
	require.NoError(t, err)
	require.Equal(t, fixedNow.Add(72*time.Hour), result.CardKeys[0].ExpiresAt)
}

func TestGenerateBatchRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	cases := []GenerateInput{
		{},
		{EmailAddresses: []string{"not-an-email"}},
		{EmailAddresses: []string{"a@x.com", "A@x.com"}},
		{EmailAddresses: []string{"a@x.com"}, ExpiryDays: 400},
	}
	for _, input := range cases {
		_, err := svc.GenerateBatch(ctx, input)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %+v: got %v", input, err)
	}
}

func TestGenerateBatchConflicts(t *testing.T) {
	t.Run("address already has a key", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		ctx := context.Background()
		_, err := svc.GenerateBatch(ctx, GenerateInput{EmailAddresses: []string{"a@x.com"}, ExpiryDays: 7})
		require.NoError(t, err)
		_, err = svc.GenerateBatch(ctx, GenerateInput{EmailAddresses: []string{"a@x.com"}, ExpiryDays: 7})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
	})

	t.Run("owned by regular user", func(t *testing.T) {
		svc, client := newTestService(t, nil)
		createOwnedEmail(t, client, "taken@x.com", enums.RoleKnight)
		createOwnedEmail(t, client, "plain@x.com", "")

		_, err := svc.GenerateBatch(context.Background(), GenerateInput{
			EmailAddresses:          []string{"free@x.com", "taken@x.com", "plain@x.com"},
			ExpiryDays:              7,
			AutoReleaseEmperorOwned: true,
		})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
		details := pkgerrors.As(err).Details().(map[string]any)
		require.ElementsMatch(t, []string{"taken@x.com", "plain@x.com"}, details["emailAddresses"])

		var count int64
		require.NoError(t, client.DB().Model(&models.CardKey{}).Count(&count).Error)
		require.Zero(t, count)
	})

	t.Run("owned by emperor", func(t *testing.T) {
		svc, client := newTestService(t, nil)
		email := createOwnedEmail(t, client, "boss@x.com", enums.RoleEmperor)
		message := models.Message{EmailID: email.ID, Subject: "hi", ReceivedAt: fixedNow}
		require.NoError(t, client.DB().Create(&message).Error)
		ctx := context.Background()

		_, err := svc.GenerateBatch(ctx, GenerateInput{EmailAddresses: []string{"boss@x.com"}, ExpiryDays: 7})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

		result, err := svc.GenerateBatch(ctx, GenerateInput{
			EmailAddresses:          []string{"boss@x.com"},
			ExpiryDays:              7,
			AutoReleaseEmperorOwned: true,
		})
		require.NoError(t, err)
		require.Len(t, result.Warnings, 1)

		var emails, messages int64
		require.NoError(t, client.DB().Model(&models.Email{}).Where("address = ?", "boss@x.com").Count(&emails).Error)
		require.NoError(t, client.DB().Model(&models.Message{}).Count(&messages).Error)
		require.Zero(t, emails)
		require.Zero(t, messages)
	})
}

func TestValidate(t *testing.T) {
	svc, client := newTestService(t, nil)
	ctx := context.Background()
	user := models.User{Name: "u", IsActive: true}
	require.NoError(t, client.DB().Create(&user).Error)
	usedAt := fixedNow.Add(-time.Hour)

	keys := []models.CardKey{
		{Code: "XYMAIL-AAAA-AAAA-AAAA", EmailAddress: "ok@x.com", ExpiresAt: fixedNow.Add(time.Hour)},
		{Code: "XYMAIL-BBBB-BBBB-BBBB", EmailAddress: "used@x.com", ExpiresAt: fixedNow.Add(time.Hour), IsUsed: true, UsedBy: &user.ID, UsedAt: &usedAt},
		{Code: "XYMAIL-CCCC-CCCC-CCCC", EmailAddress: "old@x.com", ExpiresAt: fixedNow.Add(-time.Hour)},
		{Code: "XYMAIL-DDDD-DDDD-DDDD", EmailAddress: "oldused@x.com", ExpiresAt: fixedNow.Add(-time.Hour), IsUsed: true, UsedBy: &user.ID, UsedAt: &usedAt},
	}
	require.NoError(t, NewRepository(client.DB()).CreateBatch(ctx, keys))

	key, err := svc.Validate(ctx, " xymail-aaaa-aaaa-aaaa ")
	require.NoError(t, err)
	require.Equal(t, "ok@x.com", key.EmailAddress)

	cases := map[string]error{
		"XYMAIL-BBBB-BBBB-BBBB": ErrCardKeyUsed,
		"XYMAIL-CCCC-CCCC-CCCC": ErrCardKeyExpired,
		"XYMAIL-DDDD-DDDD-DDDD": ErrCardKeyUsed,
		"XYMAIL-ZZZZ-ZZZZ-ZZZZ": ErrCardKeyNotFound,
		"garbage":               ErrCardKeyNotFound,
	}
	for code, want := range cases {
		_, err := svc.Validate(ctx, code)
		require.True(t, errors.Is(err, want), "%s: got %v want %v", code, err, want)
	}
}

func TestListAndDelete(t *testing.T) {
	svc, client := newTestService(t, nil)
	ctx := context.Background()
	user := models.User{Name: "Temp A", IsActive: true}
	require.NoError(t, client.DB().Create(&user).Error)
	usedAt := fixedNow.Add(-time.Hour)

	keys := []models.CardKey{
		{Code: "XYMAIL-AAAA-AAAA-AAAA", EmailAddress: "a@x.com", ExpiresAt: fixedNow.Add(time.Hour)},
		{Code: "XYMAIL-BBBB-BBBB-BBBB", EmailAddress: "b@x.com", ExpiresAt: fixedNow.Add(time.Hour), IsUsed: true, UsedBy: &user.ID, UsedAt: &usedAt},
		{Code: "XYMAIL-CCCC-CCCC-CCCC", EmailAddress: "c@x.com", ExpiresAt: fixedNow.Add(-time.Hour)},
	}
	require.NoError(t, NewRepository(client.DB()).CreateBatch(ctx, keys))

	page, err := svc.List(ctx, pagination.Params{Page: 1, Limit: 10}, "")
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)

	used, err := svc.List(ctx, pagination.Params{}, StatusUsed)
	require.NoError(t, err)
	require.Len(t, used.Items, 1)
	require.NotNil(t, used.Items[0].UsedBy)
	require.Equal(t, "Temp A", used.Items[0].UsedBy.Name)

	unused, err := svc.List(ctx, pagination.Params{}, StatusUnused)
	require.NoError(t, err)
	require.Len(t, unused.Items, 1)
	require.Equal(t, "a@x.com", unused.Items[0].EmailAddress)

	expired, err := svc.List(ctx, pagination.Params{}, StatusExpired)
	require.NoError(t, err)
	require.Len(t, expired.Items, 1)
	require.True(t, expired.Items[0].IsExpired)

	_, err = svc.List(ctx, pagination.Params{}, "bogus")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = svc.Delete(ctx, keys[1].ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	require.NoError(t, svc.Delete(ctx, keys[2].ID))
	require.True(t, errors.Is(svc.Delete(ctx, keys[2].ID), ErrCardKeyNotFound))
}
