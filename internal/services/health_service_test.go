package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stw/internal/models"
	"stw/internal/structures"
)

func newTestHealth(store *walletTestStore) (HealthServiceInterface, *WalletService, *walletTestStore) {
	if store == nil {
		store = newWalletTestStore()
	}
	conf := &structures.Config{
		Storage: structures.StorageConfig{QuotaMB: 1},
		Wallet: structures.WalletConfig{
			DefaultNotifyDays: 3,
			UsageWarnPercent:  80,
			BackupMaxAge:      7 * 24 * time.Hour,
		},
	}
	ws := NewWalletService(conf, store).(*WalletService)
	return NewHealthService(conf, store, ws), ws, store
}

func TestHealthCheck_HealthyWhenMandatoryKeysPresent(t *testing.T) {
	hs, ws, _ := newTestHealth(nil)
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "a"})
	require.NoError(t, ws.PersistAll())

	report := hs.Check()
	assert.True(t, report.IsHealthy)
	assert.Empty(t, report.Issues)
}

func TestHealthCheck_MissingMandatoryKey(t *testing.T) {
	hs, ws, store := newTestHealth(nil)
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "a"})
	require.NoError(t, ws.PersistAll())
	require.NoError(t, store.RemoveItem(models.KeySettings))

	report := hs.Check()
	assert.False(t, report.IsHealthy)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], `"settings"`)
}

func TestHealthCheck_EmptyStoreReportsBothKeys(t *testing.T) {
	hs, _, _ := newTestHealth(nil)

	report := hs.Check()
	assert.False(t, report.IsHealthy)
	assert.Len(t, report.Issues, 2)
}

func TestHealthCheck_AllRulesRunDespiteIssues(t *testing.T) {
	hs, _, store := newTestHealth(nil)
	store.probeErr = errors.New("read-only filesystem")

	report := hs.Check()
	assert.False(t, report.IsHealthy)
	// Missing keys are issues; probe failure and missing backup still show up
	// as recommendations in the same pass.
	assert.NotEmpty(t, report.Issues)
	assert.NotEmpty(t, report.Recommendations)
}

func TestHealthCheck_IncompleteTicketsAreSoft(t *testing.T) {
	hs, ws, _ := newTestHealth(nil)
	_, _ = ws.AddTicket(&models.Ticket{ID: "has-no-name"})
	require.NoError(t, ws.PersistAll())

	report := hs.Check()
	assert.True(t, report.IsHealthy)
	assert.Equal(t, 1, report.IncompleteTickets)
	assert.NotEmpty(t, report.Recommendations)
}

func TestHealthCheck_MalformedTasksAggregate(t *testing.T) {
	hs, _, store := newTestHealth(nil)
	require.NoError(t, store.SetItem(models.KeyTasks, []byte(`{"not":"a list"}`)))
	require.NoError(t, store.SetItem(models.KeySettings, []byte(`{}`)))

	report := hs.Check()
	assert.False(t, report.IsHealthy)
	assert.Contains(t, report.Issues, "tasks aggregate is not a list")
}

func TestHealthCheck_BackupRecommendations(t *testing.T) {
	hs, ws, _ := newTestHealth(nil)
	require.NoError(t, ws.PersistAll())

	report := hs.Check()
	assert.Contains(t, report.Recommendations, "no cloud backup has been made yet")

	require.NoError(t, ws.SetLastBackup(time.Now().Add(-30*24*time.Hour)))
	report = hs.Check()
	stale := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "day(s) old") {
			stale = true
		}
	}
	assert.True(t, stale, "stale backup should be flagged")
	assert.NotContains(t, report.Recommendations, "no cloud backup has been made yet")
}

func TestHealthCheck_StoreErrorBecomesIssue(t *testing.T) {
	hs, ws, store := newTestHealth(nil)
	require.NoError(t, ws.PersistAll())

	store.failSet = true
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "a"})
	store.failSet = false

	report := hs.Check()
	assert.False(t, report.IsHealthy)
	assert.NotEmpty(t, report.Issues)
}
