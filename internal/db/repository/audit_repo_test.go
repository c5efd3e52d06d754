package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quindar/devicetrust/internal/models"
)

func TestAuditRepository_CreateAndList(t *testing.T) {
	database := newTestDB(t)
	repo := NewAuditRepository(database.DB)

	entry := &models.AuditLog{
		Action:   models.ActionDeviceApprove,
		Actor:    "admin-jo",
		DeviceID: "DEV-00000001",
		ClientIP: "10.0.0.5",
		Success:  true,
		Details:  "serial AAAA-BBBB-CCCC-0001",
	}
	require.NoError(t, repo.Create(entry))
	assert.NotZero(t, entry.ID)

	logs, err := repo.List("", "", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionDeviceApprove, logs[0].Action)
	assert.Equal(t, "admin-jo", logs[0].Actor)
	assert.True(t, logs[0].Success)
}

func TestAuditRepository_ListFilters(t *testing.T) {
	database := newTestDB(t)
	repo := NewAuditRepository(database.DB)

	for _, e := range []*models.AuditLog{
		{Action: models.ActionDeviceApprove, Actor: "admin-jo", ClientIP: "10.0.0.5", Success: true},
		{Action: models.ActionDeviceRevoke, Actor: "admin-jo", ClientIP: "10.0.0.5", Success: true},
		{Action: models.ActionDeviceApprove, Actor: "admin-bo", ClientIP: "10.0.0.6", Success: true},
	} {
		require.NoError(t, repo.Create(e))
	}

	byActor, err := repo.List("admin-jo", "", 10)
	require.NoError(t, err)
	assert.Len(t, byActor, 2)

	byAction, err := repo.List("", models.ActionDeviceApprove, 10)
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	both, err := repo.List("admin-bo", models.ActionDeviceApprove, 10)
	require.NoError(t, err)
	assert.Len(t, both, 1)
}

func TestAuditRepository_ListFailedAuth(t *testing.T) {
	database := newTestDB(t)
	repo := NewAuditRepository(database.DB)

	require.NoError(t, repo.Create(&models.AuditLog{
		Action: models.ActionAuthFailed, ClientIP: "10.0.0.9", Success: false, ErrorMsg: "bad token",
	}))
	require.NoError(t, repo.Create(&models.AuditLog{
		Action: models.ActionDeviceApprove, Actor: "admin", ClientIP: "10.0.0.5", Success: true,
	}))

	failed, err := repo.ListFailedAuth(time.Now().Add(-time.Hour).UTC(), 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "bad token", failed[0].ErrorMsg)
}

func TestAuditRepository_CountByAction(t *testing.T) {
	database := newTestDB(t)
	repo := NewAuditRepository(database.DB)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(&models.AuditLog{
			Action: models.ActionDeviceValidate, ClientIP: "10.0.0.5", Success: true,
		}))
	}

	count, err := repo.CountByAction(models.ActionDeviceValidate, time.Now().Add(-time.Hour).UTC())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
