package messages

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xymail/xymail-backend/pkg/db/dbtest"
	"github.com/xymail/xymail-backend/pkg/db/models"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/pagination"
)

func TestDeliverStoresForActiveAddresses(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	user := models.User{Name: "owner", IsActive: true}
	require.NoError(t, client.DB().Create(&user).Error)
	active := models.Email{Address: "a@x.com", UserID: user.ID, ExpiresAt: now.Add(time.Hour)}
	expired := models.Email{Address: "b@x.com", UserID: user.ID, ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, client.DB().Create(&active).Error)
	require.NoError(t, client.DB().Create(&expired).Error)

	svc, err := NewService(client, logger.Nop(), func() time.Time { return now })
	require.NoError(t, err)

	result, err := svc.Deliver(ctx, strings.NewReader(multipartMessage))
	require.NoError(t, err)
	require.Equal(t, 1, result.Stored)
	require.Equal(t, []string{"a@x.com"}, result.Recipients)

	rows, total, err := NewRepository(client.DB()).ListByEmail(ctx, active.ID, pagination.Params{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Your code", rows[0].Subject)
	require.Equal(t, "Sender@Example.com", rows[0].FromAddress)

	page, err := svc.List(ctx, active.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Contains(t, page.Items[0].Content, "code 123456")
}

func TestDeliverRejectsGarbage(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewService(client, logger.Nop(), nil)
	require.NoError(t, err)
	_, err = svc.Deliver(context.Background(), strings.NewReader("no colon here\r\n\r\nbody\r\n"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}
