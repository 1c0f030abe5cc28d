package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stw/internal/models"
	"stw/internal/structures"
)

var errStoreFailing = errors.New("store failing")

// walletTestStore is an in-memory store fixture local to this package; the
// shared testutil store pulls in providers, which imports services.
type walletTestStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	failSet  bool
	failKeys map[string]bool
	probeErr error
}

func newWalletTestStore() *walletTestStore {
	return &walletTestStore{
		data:     make(map[string][]byte),
		failKeys: make(map[string]bool),
	}
}

func (s *walletTestStore) Init() error { return nil }

func (s *walletTestStore) GetItem(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *walletTestStore) SetItem(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet || s.failKeys[key] {
		return errStoreFailing
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *walletTestStore) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *walletTestStore) Usage() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, v := range s.data {
		total += int64(len(v))
	}
	return total, nil
}

func (s *walletTestStore) Probe() error { return s.probeErr }
func (s *walletTestStore) Close()       {}

func newTestService(store *walletTestStore) (*WalletService, *walletTestStore) {
	if store == nil {
		store = newWalletTestStore()
	}
	conf := &structures.Config{
		Wallet: structures.WalletConfig{DefaultNotifyDays: 3, MaxTickets: 100},
	}
	return NewWalletService(conf, store).(*WalletService), store
}

// --- ticket lifecycle tests ---

func TestAddTicket_AssignsIDAndDefaults(t *testing.T) {
	ws, _ := newTestService(nil)

	ticket, err := ws.AddTicket(&models.Ticket{ProductName: "Cinema pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, models.StateActive, ticket.State)
	assert.NotZero(t, ticket.CreatedAt)
}

func TestAddTicket_KeepsGivenID(t *testing.T) {
	ws, _ := newTestService(nil)

	ticket, err := ws.AddTicket(&models.Ticket{ID: "fixed-id"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", ticket.ID)
}

func TestAddTicket_WalletFull(t *testing.T) {
	store := newWalletTestStore()
	conf := &structures.Config{
		Wallet: structures.WalletConfig{DefaultNotifyDays: 3, MaxTickets: 1},
	}
	ws := NewWalletService(conf, store)

	_, err := ws.AddTicket(&models.Ticket{ProductName: "first"})
	require.NoError(t, err)

	_, err = ws.AddTicket(&models.Ticket{ProductName: "second"})
	assert.ErrorIs(t, err, ErrWalletFull)
}

func TestCompleteDeleteRestore_Transitions(t *testing.T) {
	ws, _ := newTestService(nil)
	ticket, _ := ws.AddTicket(&models.Ticket{ProductName: "Spa day"})

	completed, err := ws.CompleteTicket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, completed.State)
	assert.NotZero(t, completed.CompletedAt)

	deleted, err := ws.DeleteTicket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDeleted, deleted.State)
	assert.NotZero(t, deleted.DeletedAt)

	restored, err := ws.RestoreTicket(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, restored.State)
	assert.Zero(t, restored.CompletedAt)
	assert.Zero(t, restored.DeletedAt)
}

func TestSetState_UnknownTicket(t *testing.T) {
	ws, _ := newTestService(nil)
	_, err := ws.CompleteTicket("missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestPurgeTicket_RemovesForGood(t *testing.T) {
	ws, _ := newTestService(nil)
	ticket, _ := ws.AddTicket(&models.Ticket{ProductName: "temp"})

	require.NoError(t, ws.PurgeTicket(ticket.ID))
	_, found := ws.GetTicket(ticket.ID)
	assert.False(t, found)

	assert.ErrorIs(t, ws.PurgeTicket(ticket.ID), ErrTicketNotFound)
}

func TestListTickets_FiltersByView(t *testing.T) {
	ws, _ := newTestService(nil)
	a, _ := ws.AddTicket(&models.Ticket{ProductName: "a"})
	b, _ := ws.AddTicket(&models.Ticket{ProductName: "b"})
	c, _ := ws.AddTicket(&models.Ticket{ProductName: "c"})
	_, _ = ws.CompleteTicket(b.ID)
	_, _ = ws.DeleteTicket(c.ID)

	active := ws.ListTickets(models.StateActive)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	assert.Len(t, ws.ListTickets(models.StateCompleted), 1)
	assert.Len(t, ws.ListTickets(models.StateDeleted), 1)
}

func TestListTickets_DeletedHidesCompletedHistory(t *testing.T) {
	ws, _ := newTestService(nil)
	ticket, _ := ws.AddTicket(&models.Ticket{ProductName: "x"})
	_, _ = ws.CompleteTicket(ticket.ID)
	_, _ = ws.DeleteTicket(ticket.ID)

	assert.Empty(t, ws.ListTickets(models.StateCompleted))
	assert.Len(t, ws.ListTickets(models.StateDeleted), 1)
}

func TestCounts(t *testing.T) {
	ws, _ := newTestService(nil)
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "a"})
	b, _ := ws.AddTicket(&models.Ticket{ProductName: "b"})
	c, _ := ws.AddTicket(&models.Ticket{ProductName: "c"})
	_, _ = ws.CompleteTicket(b.ID)
	_, _ = ws.DeleteTicket(c.ID)

	active, completed, deleted := ws.Counts()
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, deleted)
}

func TestUpdateTicket_PreservesStateAndCreatedAt(t *testing.T) {
	ws, _ := newTestService(nil)
	ticket, _ := ws.AddTicket(&models.Ticket{ProductName: "old name"})
	_, _ = ws.CompleteTicket(ticket.ID)

	updated, err := ws.UpdateTicket(&models.Ticket{ID: ticket.ID, ProductName: "new name"})
	require.NoError(t, err)
	assert.Equal(t, "new name", updated.ProductName)
	assert.Equal(t, models.StateCompleted, updated.State)
	assert.Equal(t, ticket.CreatedAt, updated.CreatedAt)
}

func TestBatchUpdate_TagsAndState(t *testing.T) {
	ws, _ := newTestService(nil)
	a, _ := ws.AddTicket(&models.Ticket{ProductName: "a", Tags: []string{"old"}})
	b, _ := ws.AddTicket(&models.Ticket{ProductName: "b"})

	state := models.StateCompleted
	updated, err := ws.BatchUpdate(&models.BatchPatch{
		IDs:        []string{a.ID, b.ID, "missing"},
		AddTags:    []string{"bulk"},
		RemoveTags: []string{"old"},
		State:      &state,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	got, _ := ws.GetTicket(a.ID)
	assert.Equal(t, []string{"bulk"}, got.Tags)
	assert.Equal(t, models.StateCompleted, got.State)
}

func TestBatchUpdate_InvalidState(t *testing.T) {
	ws, _ := newTestService(nil)
	bad := models.TicketState("archived")
	_, err := ws.BatchUpdate(&models.BatchPatch{IDs: []string{"x"}, State: &bad})
	assert.Error(t, err)
}

func TestTags_DeduplicatedSortedActiveOnly(t *testing.T) {
	ws, _ := newTestService(nil)
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "a", Tags: []string{"food", "gift"}})
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "b", Tags: []string{"food"}})
	c, _ := ws.AddTicket(&models.Ticket{ProductName: "c", Tags: []string{"hidden"}})
	_, _ = ws.DeleteTicket(c.ID)

	assert.Equal(t, []string{"food", "gift"}, ws.Tags())
}

func TestExpiringSoon_UsesSettingsWindow(t *testing.T) {
	ws, _ := newTestService(nil)
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	_, _ = ws.AddTicket(&models.Ticket{ProductName: "soon", Expiry: "2026/06/12"})
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "later", Expiry: "2026/07/01"})

	soon := ws.ExpiringSoon(now)
	require.Len(t, soon, 1)
	assert.Equal(t, "soon", soon[0].ProductName)
}

// --- template tests ---

func TestTemplates_AddRemove(t *testing.T) {
	ws, _ := newTestService(nil)

	tpl, err := ws.AddTemplate(&models.Template{Name: "Coffee"})
	require.NoError(t, err)
	assert.NotEmpty(t, tpl.ID)
	assert.Len(t, ws.Templates(), 1)

	require.NoError(t, ws.RemoveTemplate(tpl.ID))
	assert.Empty(t, ws.Templates())
	assert.ErrorIs(t, ws.RemoveTemplate(tpl.ID), ErrTemplateNotFound)
}

func TestCreateFromTemplate(t *testing.T) {
	ws, _ := newTestService(nil)
	tpl, _ := ws.AddTemplate(&models.Template{
		Name:        "Coffee",
		ProductName: "Coffee voucher",
		Tags:        []string{"cafe"},
		RedeemURL:   "https://example.com",
	})

	ticket, err := ws.CreateFromTemplate(tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coffee voucher", ticket.ProductName)
	assert.Equal(t, []string{"cafe"}, ticket.Tags)
	assert.Equal(t, models.StateActive, ticket.State)
	assert.NotEqual(t, tpl.ID, ticket.ID)
}

func TestCreateFromTemplate_Unknown(t *testing.T) {
	ws, _ := newTestService(nil)
	_, err := ws.CreateFromTemplate("missing")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

// --- background history tests ---

func TestBgHistory_MostRecentFirstDeduplicated(t *testing.T) {
	ws, _ := newTestService(nil)
	require.NoError(t, ws.AddBgHistory("https://img/a"))
	require.NoError(t, ws.AddBgHistory("https://img/b"))
	require.NoError(t, ws.AddBgHistory("https://img/a"))

	assert.Equal(t, []string{"https://img/a", "https://img/b"}, ws.BgHistory())
}

func TestBgHistory_CapEnforced(t *testing.T) {
	ws, _ := newTestService(nil)
	for i := 0; i < models.BgHistoryCap+5; i++ {
		require.NoError(t, ws.AddBgHistory("https://img/"+string(rune('a'+i))))
	}
	history := ws.BgHistory()
	assert.Len(t, history, models.BgHistoryCap)
	// The newest entry survives, the oldest ones were pushed out.
	assert.Equal(t, "https://img/"+string(rune('a'+models.BgHistoryCap+4)), history[0])
}

func TestBgHistory_Remove(t *testing.T) {
	ws, _ := newTestService(nil)
	_ = ws.AddBgHistory("https://img/a")
	_ = ws.AddBgHistory("https://img/b")

	require.NoError(t, ws.RemoveBgHistory("https://img/b"))
	assert.Equal(t, []string{"https://img/a"}, ws.BgHistory())
}

func TestBgHistory_IgnoresBlank(t *testing.T) {
	ws, _ := newTestService(nil)
	require.NoError(t, ws.AddBgHistory("   "))
	assert.Empty(t, ws.BgHistory())
}

func TestMergeBgHistory_IncomingWins(t *testing.T) {
	merged := mergeBgHistory([]string{"new1", "shared"}, []string{"shared", "old1"})
	assert.Equal(t, []string{"new1", "shared", "old1"}, merged)
}

// --- settings tests ---

func TestSettings_PutAndGet(t *testing.T) {
	ws, _ := newTestService(nil)

	s := ws.GetSettings()
	assert.Equal(t, 3, s.NotifyDays)

	s.NotifyDays = 7
	s.AppTitle = "My Wallet"
	require.NoError(t, ws.PutSettings(s))

	got := ws.GetSettings()
	assert.Equal(t, 7, got.NotifyDays)
	assert.Equal(t, "My Wallet", got.AppTitle)
}

// --- export / import tests ---

func TestSnapshot_ContainsAllAggregates(t *testing.T) {
	ws, _ := newTestService(nil)
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "a"})
	_, _ = ws.AddTemplate(&models.Template{Name: "tpl"})
	_ = ws.AddBgHistory("https://img/a")

	snap := ws.Snapshot()
	assert.Equal(t, models.ExportVersion, snap.Version)
	assert.NotZero(t, snap.Timestamp)
	assert.Len(t, snap.Tasks, 1)
	assert.Len(t, snap.Templates, 1)
	assert.Len(t, snap.BgHistory, 1)
	assert.NotNil(t, snap.Settings)
}

func TestImportMerge_OverwriteReplacesTickets(t *testing.T) {
	ws, _ := newTestService(nil)
	_, _ = ws.AddTicket(&models.Ticket{ID: "old"})

	summary, err := ws.ImportMerge(&models.ExportPayload{
		Tasks: []*models.Ticket{{ID: "new1"}, {ID: "new2"}},
	}, models.ImportOptions{Mode: models.ImportOverwrite})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TicketsAdded)

	_, found := ws.GetTicket("old")
	assert.False(t, found)
	_, found = ws.GetTicket("new1")
	assert.True(t, found)
}

func TestImportMerge_AppendExistingWins(t *testing.T) {
	ws, _ := newTestService(nil)
	_, _ = ws.AddTicket(&models.Ticket{ID: "shared", ProductName: "mine"})

	summary, err := ws.ImportMerge(&models.ExportPayload{
		Tasks: []*models.Ticket{
			{ID: "shared", ProductName: "theirs"},
			{ID: "fresh"},
		},
	}, models.ImportOptions{Mode: models.ImportAppend})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TicketsAdded)
	assert.Equal(t, 1, summary.TicketsSkipped)

	got, _ := ws.GetTicket("shared")
	assert.Equal(t, "mine", got.ProductName)
}

func TestImportMerge_OptionalSections(t *testing.T) {
	ws, _ := newTestService(nil)
	payload := &models.ExportPayload{
		Settings:  &models.Settings{NotifyDays: 9},
		Templates: []*models.Template{{ID: "tpl1", Name: "tpl"}},
		BgHistory: []string{"https://img/a"},
	}

	_, err := ws.ImportMerge(payload, models.ImportOptions{Mode: models.ImportAppend})
	require.NoError(t, err)
	assert.Empty(t, ws.Templates())
	assert.Empty(t, ws.BgHistory())
	assert.Equal(t, 3, ws.GetSettings().NotifyDays)

	summary, err := ws.ImportMerge(payload, models.ImportOptions{
		Mode:          models.ImportAppend,
		WithSettings:  true,
		WithTemplates: true,
		WithBgHistory: true,
	})
	require.NoError(t, err)
	assert.True(t, summary.SettingsReplaced)
	assert.Equal(t, 1, summary.TemplatesAdded)
	assert.Len(t, ws.Templates(), 1)
	assert.Equal(t, []string{"https://img/a"}, ws.BgHistory())
	assert.Equal(t, 9, ws.GetSettings().NotifyDays)
}

func TestImportMerge_UnknownMode(t *testing.T) {
	ws, _ := newTestService(nil)
	_, err := ws.ImportMerge(&models.ExportPayload{}, models.ImportOptions{Mode: "merge"})
	assert.Error(t, err)
}

func TestExportImport_RoundTrip(t *testing.T) {
	ws, _ := newTestService(nil)
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "a", Tags: []string{"x"}})
	b, _ := ws.AddTicket(&models.Ticket{ProductName: "b"})
	_, _ = ws.CompleteTicket(b.ID)
	_, _ = ws.AddTemplate(&models.Template{Name: "tpl"})
	_ = ws.AddBgHistory("https://img/a")

	exported, err := json.Marshal(ws.Snapshot())
	require.NoError(t, err)

	var payload models.ExportPayload
	require.NoError(t, json.Unmarshal(exported, &payload))

	other, _ := newTestService(nil)
	_, err = other.ImportMerge(&payload, models.ImportOptions{
		Mode:          models.ImportOverwrite,
		WithSettings:  true,
		WithTemplates: true,
		WithBgHistory: true,
	})
	require.NoError(t, err)

	reExported, err := json.Marshal(other.Snapshot())
	require.NoError(t, err)

	var first, second models.ExportPayload
	require.NoError(t, json.Unmarshal(exported, &first))
	require.NoError(t, json.Unmarshal(reExported, &second))
	first.Timestamp, second.Timestamp = 0, 0
	assert.Equal(t, first, second)
}

// --- persistence tests ---

func TestWriteThrough_PersistsOnMutation(t *testing.T) {
	ws, store := newTestService(nil)
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "a"})

	data, ok, err := store.GetItem(models.KeyTasks)
	require.NoError(t, err)
	require.True(t, ok)

	var tickets []*models.Ticket
	require.NoError(t, json.Unmarshal(data, &tickets))
	require.Len(t, tickets, 1)
	assert.Equal(t, "a", tickets[0].ProductName)
}

func TestWriteThrough_FailureRecordedNotSurfaced(t *testing.T) {
	ws, store := newTestService(nil)
	store.failSet = true

	ticket, err := ws.AddTicket(&models.Ticket{ProductName: "a"})
	require.NoError(t, err)
	assert.NotNil(t, ticket)
	assert.Error(t, ws.LastStoreErr())

	store.failSet = false
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "b"})
	assert.NoError(t, ws.LastStoreErr())
}

func TestWriteThrough_FailedAggregateNotMaskedByLaterWrite(t *testing.T) {
	ws, store := newTestService(nil)
	store.failKeys[models.KeyTasks] = true

	_, err := ws.AddTicket(&models.Ticket{ProductName: "a"})
	require.NoError(t, err)

	// A successful settings write must not clear the pending tasks error.
	require.NoError(t, ws.PutSettings(ws.GetSettings()))
	err = ws.LastStoreErr()
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.KeyTasks)

	delete(store.failKeys, models.KeyTasks)
	_, _ = ws.AddTicket(&models.Ticket{ProductName: "b"})
	assert.NoError(t, ws.LastStoreErr())
}

func TestLoadFromStore_RestoresAggregates(t *testing.T) {
	ws, store := newTestService(nil)
	_, _ = ws.AddTicket(&models.Ticket{ID: "t1", ProductName: "a"})
	_, _ = ws.AddTemplate(&models.Template{ID: "tpl1", Name: "tpl"})
	_ = ws.AddBgHistory("https://img/a")
	require.NoError(t, ws.PersistAll())

	reloaded, _ := newTestService(store)
	require.NoError(t, reloaded.LoadFromStore())

	_, found := reloaded.GetTicket("t1")
	assert.True(t, found)
	assert.Len(t, reloaded.Templates(), 1)
	assert.Equal(t, []string{"https://img/a"}, reloaded.BgHistory())
}

func TestLoadFromStore_SeedsDefaultSettings(t *testing.T) {
	store := newWalletTestStore()
	ws, _ := newTestService(store)

	require.NoError(t, ws.LoadFromStore())
	assert.Equal(t, 3, ws.GetSettings().NotifyDays)

	_, ok, err := store.GetItem(models.KeySettings)
	require.NoError(t, err)
	assert.True(t, ok, "default settings should be written back")
}

func TestLoadFromStore_CorruptAggregate(t *testing.T) {
	store := newWalletTestStore()
	require.NoError(t, store.SetItem(models.KeyTasks, []byte("not json")))

	ws, _ := newTestService(store)
	assert.Error(t, ws.LoadFromStore())
}

func TestSetLastBackup_Persisted(t *testing.T) {
	ws, store := newTestService(nil)
	ts := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, ws.SetLastBackup(ts))
	assert.Equal(t, ts.UnixMilli(), ws.Meta().LastBackupAt)

	_, ok, err := store.GetItem(models.KeyMeta)
	require.NoError(t, err)
	assert.True(t, ok)
}
