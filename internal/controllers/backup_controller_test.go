package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stw/internal/cloud"
	"stw/internal/importer"
	"stw/internal/models"
	"stw/internal/services"
	"stw/internal/structures"
	"stw/internal/testutil"
)

type mockGasClient struct {
	configured bool
	backupMeta *models.Meta
	backupErr  error
	fetchData  []byte
	fetchErr   error
	backups    int
}

func (m *mockGasClient) Configured() bool { return m.configured }
func (m *mockGasClient) Backup(_ context.Context) (*models.Meta, error) {
	m.backups++
	return m.backupMeta, m.backupErr
}
func (m *mockGasClient) Fetch(_ context.Context) ([]byte, error) {
	return m.fetchData, m.fetchErr
}

func newBackupFixture(t *testing.T, gas *mockGasClient) (*BackupController, services.WalletServiceInterface, *testutil.MockMetrics, *mockCache) {
	t.Helper()
	conf := &structures.Config{
		Wallet: structures.WalletConfig{DefaultNotifyDays: 3},
	}
	svc := services.NewWalletService(conf, testutil.NewMockStore())
	validator, err := importer.NewValidator()
	require.NoError(t, err)
	metrics := testutil.NewMockMetrics()
	cache := newMockCache()
	return NewBackupController(&testutil.MockLogger{}, svc, cache, gas, validator, metrics), svc, metrics, cache
}

func TestRunBackup_OK(t *testing.T) {
	gas := &mockGasClient{backupMeta: &models.Meta{LastBackupAt: 1700000000000}}
	bc, _, metrics, _ := newBackupFixture(t, gas)

	req := httptest.NewRequest(http.MethodPost, "/backup/run", nil)
	rr := httptest.NewRecorder()
	bc.RunBackup(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, gas.backups)
	assert.Equal(t, 1, metrics.Backups["ok"])

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(1700000000000), resp["lastBackupAt"])
}

func TestRunBackup_NotConfigured(t *testing.T) {
	gas := &mockGasClient{backupErr: cloud.ErrNotConfigured}
	bc, _, metrics, _ := newBackupFixture(t, gas)

	req := httptest.NewRequest(http.MethodPost, "/backup/run", nil)
	rr := httptest.NewRecorder()
	bc.RunBackup(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, metrics.Backups)
}

func TestRunBackup_UpstreamFailure(t *testing.T) {
	gas := &mockGasClient{backupErr: errors.New("endpoint returned HTTP 500")}
	bc, _, metrics, _ := newBackupFixture(t, gas)

	req := httptest.NewRequest(http.MethodPost, "/backup/run", nil)
	rr := httptest.NewRecorder()
	bc.RunBackup(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, 1, metrics.Backups["error"])
}

func TestRestoreBackup_MergesFetchedPayload(t *testing.T) {
	gas := &mockGasClient{fetchData: []byte(`{"tasks":[{"id":"restored"}]}`)}
	bc, svc, _, _ := newBackupFixture(t, gas)

	req := httptest.NewRequest(http.MethodPost, "/backup/restore", nil)
	rr := httptest.NewRecorder()
	bc.RestoreBackup(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	_, found := svc.GetTicket("restored")
	assert.True(t, found)
}

func TestRestoreBackup_InvalidatesCachedResponses(t *testing.T) {
	gas := &mockGasClient{fetchData: []byte(`{"tasks":[{"id":"restored"}],"templates":[{"id":"tpl1","name":"tpl"}]}`)}
	bc, _, _, cache := newBackupFixture(t, gas)
	cache.Set("list:active", []byte(`[]`))
	cache.Set("expiring", []byte(`[]`))
	cache.Set("tags", []byte(`[]`))
	cache.Set("templates", []byte(`[]`))

	req := httptest.NewRequest(http.MethodPost, "/backup/restore?templates=true", nil)
	rr := httptest.NewRecorder()
	bc.RestoreBackup(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	for _, key := range []string{"list:active", "expiring", "tags", "templates"} {
		_, ok := cache.Get(key)
		assert.False(t, ok, key)
	}
}

func TestRestoreBackup_InvalidPayloadRejected(t *testing.T) {
	gas := &mockGasClient{fetchData: []byte(`{"tasks":[{"productName":"no id"}]}`)}
	bc, svc, _, _ := newBackupFixture(t, gas)
	_, _ = svc.AddTicket(&models.Ticket{ID: "keep"})

	req := httptest.NewRequest(http.MethodPost, "/backup/restore", nil)
	rr := httptest.NewRecorder()
	bc.RestoreBackup(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Len(t, svc.ListTickets(models.StateActive), 1)
}

func TestRestoreBackup_NotConfigured(t *testing.T) {
	gas := &mockGasClient{fetchErr: cloud.ErrNotConfigured}
	bc, _, _, _ := newBackupFixture(t, gas)

	req := httptest.NewRequest(http.MethodPost, "/backup/restore", nil)
	rr := httptest.NewRecorder()
	bc.RestoreBackup(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRestoreBackup_FetchFailure(t *testing.T) {
	gas := &mockGasClient{fetchErr: errors.New("download failed")}
	bc, _, _, _ := newBackupFixture(t, gas)

	req := httptest.NewRequest(http.MethodPost, "/backup/restore", nil)
	rr := httptest.NewRecorder()
	bc.RestoreBackup(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestBackupStatus(t *testing.T) {
	gas := &mockGasClient{configured: true}
	bc, svc, _, _ := newBackupFixture(t, gas)
	require.NoError(t, svc.SetLastBackup(time.UnixMilli(1700000000000)))

	req := httptest.NewRequest(http.MethodGet, "/backup/status", nil)
	rr := httptest.NewRecorder()
	bc.BackupStatus(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["configured"])
	assert.Equal(t, float64(1700000000000), resp["lastBackupAt"])
}
