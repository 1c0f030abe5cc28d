package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"stw/internal/models"
	"stw/internal/storage/interfaces"
	"stw/internal/structures"
)

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrWalletFull       = errors.New("ticket limit reached")
)

type WalletServiceInterface interface {
	AddTicket(t *models.Ticket) (*models.Ticket, error)
	CreateFromTemplate(templateID string) (*models.Ticket, error)
	UpdateTicket(t *models.Ticket) (*models.Ticket, error)
	BatchUpdate(patch *models.BatchPatch) (int, error)
	CompleteTicket(id string) (*models.Ticket, error)
	DeleteTicket(id string) (*models.Ticket, error)
	RestoreTicket(id string) (*models.Ticket, error)
	PurgeTicket(id string) error
	GetTicket(id string) (*models.Ticket, bool)
	ListTickets(view models.TicketState) []*models.Ticket
	ExpiringSoon(now time.Time) []*models.Ticket
	Tags() []string
	Counts() (active, completed, deleted int)

	Templates() []*models.Template
	AddTemplate(tpl *models.Template) (*models.Template, error)
	RemoveTemplate(id string) error

	GetSettings() *models.Settings
	PutSettings(s *models.Settings) error

	BgHistory() []string
	AddBgHistory(url string) error
	RemoveBgHistory(url string) error

	Snapshot() *models.ExportPayload
	ImportMerge(p *models.ExportPayload, opts models.ImportOptions) (*models.ImportSummary, error)

	Meta() *models.Meta
	SetLastBackup(ts time.Time) error

	LoadFromStore() error
	PersistAll() error
	LastStoreErr() error
}

// WalletService owns the in-memory aggregates. It is the single source of
// truth; the store is a write-through mirror. Store write failures are
// recorded, not surfaced; the health check reports them.
type WalletService struct {
	mu        sync.RWMutex
	conf      *structures.Config
	store     interfaces.StoreInterface
	tickets   []*models.Ticket
	templates []*models.Template
	settings  *models.Settings
	bgHistory []string
	meta      *models.Meta

	storeErrMu sync.Mutex
	storeErrs  map[string]error
}

func NewWalletService(conf *structures.Config, store interfaces.StoreInterface) WalletServiceInterface {
	return &WalletService{
		conf:      conf,
		store:     store,
		settings:  models.DefaultSettings(conf.Wallet.DefaultNotifyDays),
		meta:      &models.Meta{},
		storeErrs: make(map[string]error),
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// --- tickets ---

func (ws *WalletService) AddTicket(t *models.Ticket) (*models.Ticket, error) {
	ws.mu.Lock()
	if max := ws.conf.Wallet.MaxTickets; max > 0 && len(ws.tickets) >= max {
		ws.mu.Unlock()
		return nil, ErrWalletFull
	}
	c := t.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.State == "" {
		c.State = models.StateActive
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = nowMs()
	}
	ws.tickets = append(ws.tickets, c)
	ws.mu.Unlock()

	ws.persistTasks()
	return c.Clone(), nil
}

func (ws *WalletService) CreateFromTemplate(templateID string) (*models.Ticket, error) {
	ws.mu.RLock()
	var tpl *models.Template
	for _, v := range ws.templates {
		if v.ID == templateID {
			tpl = v
			break
		}
	}
	ws.mu.RUnlock()
	if tpl == nil {
		return nil, ErrTemplateNotFound
	}

	return ws.AddTicket(&models.Ticket{
		ProductName: tpl.ProductName,
		Image:       tpl.Image,
		Tags:        tpl.Tags,
		Serial:      tpl.Serial,
		Expiry:      tpl.Expiry,
		RedeemURL:   tpl.RedeemURL,
	})
}

func (ws *WalletService) UpdateTicket(t *models.Ticket) (*models.Ticket, error) {
	ws.mu.Lock()
	idx := ws.indexOf(t.ID)
	if idx < 0 {
		ws.mu.Unlock()
		return nil, ErrTicketNotFound
	}
	c := t.Clone()
	if c.State == "" {
		c.State = ws.tickets[idx].State
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = ws.tickets[idx].CreatedAt
	}
	ws.tickets[idx] = c
	ws.mu.Unlock()

	ws.persistTasks()
	return c.Clone(), nil
}

func (ws *WalletService) BatchUpdate(patch *models.BatchPatch) (int, error) {
	if patch.State != nil && !models.ValidState(string(*patch.State)) {
		return 0, fmt.Errorf("invalid state %q", *patch.State)
	}

	ws.mu.Lock()
	updated := 0
	for _, id := range patch.IDs {
		idx := ws.indexOf(id)
		if idx < 0 {
			continue
		}
		t := ws.tickets[idx]
		for _, tag := range patch.AddTags {
			if tag != "" && !t.HasTag(tag) {
				t.Tags = append(t.Tags, tag)
			}
		}
		if len(patch.RemoveTags) > 0 {
			keep := t.Tags[:0]
			for _, tag := range t.Tags {
				drop := false
				for _, rm := range patch.RemoveTags {
					if tag == rm {
						drop = true
						break
					}
				}
				if !drop {
					keep = append(keep, tag)
				}
			}
			t.Tags = keep
		}
		if patch.Expiry != nil {
			t.Expiry = *patch.Expiry
		}
		if patch.State != nil {
			applyState(t, *patch.State)
		}
		updated++
	}
	ws.mu.Unlock()

	if updated > 0 {
		ws.persistTasks()
	}
	return updated, nil
}

func applyState(t *models.Ticket, state models.TicketState) {
	if t.State == state {
		return
	}
	t.State = state
	switch state {
	case models.StateCompleted:
		t.CompletedAt = nowMs()
	case models.StateDeleted:
		t.DeletedAt = nowMs()
	case models.StateActive:
		t.CompletedAt = 0
		t.DeletedAt = 0
	}
}

func (ws *WalletService) setState(id string, state models.TicketState) (*models.Ticket, error) {
	ws.mu.Lock()
	idx := ws.indexOf(id)
	if idx < 0 {
		ws.mu.Unlock()
		return nil, ErrTicketNotFound
	}
	applyState(ws.tickets[idx], state)
	c := ws.tickets[idx].Clone()
	ws.mu.Unlock()

	ws.persistTasks()
	return c, nil
}

func (ws *WalletService) CompleteTicket(id string) (*models.Ticket, error) {
	return ws.setState(id, models.StateCompleted)
}

func (ws *WalletService) DeleteTicket(id string) (*models.Ticket, error) {
	return ws.setState(id, models.StateDeleted)
}

func (ws *WalletService) RestoreTicket(id string) (*models.Ticket, error) {
	return ws.setState(id, models.StateActive)
}

func (ws *WalletService) PurgeTicket(id string) error {
	ws.mu.Lock()
	idx := ws.indexOf(id)
	if idx < 0 {
		ws.mu.Unlock()
		return ErrTicketNotFound
	}
	ws.tickets = append(ws.tickets[:idx], ws.tickets[idx+1:]...)
	ws.mu.Unlock()

	ws.persistTasks()
	return nil
}

func (ws *WalletService) GetTicket(id string) (*models.Ticket, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	idx := ws.indexOf(id)
	if idx < 0 {
		return nil, false
	}
	return ws.tickets[idx].Clone(), true
}

func (ws *WalletService) ListTickets(view models.TicketState) []*models.Ticket {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	out := make([]*models.Ticket, 0)
	for _, t := range ws.tickets {
		if t.State == view {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (ws *WalletService) ExpiringSoon(now time.Time) []*models.Ticket {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	notifyDays := ws.settings.NotifyDays
	out := make([]*models.Ticket, 0)
	for _, t := range ws.tickets {
		if t.ExpiringSoon(now, notifyDays) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (ws *WalletService) Tags() []string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, t := range ws.tickets {
		if t.State == models.StateDeleted {
			continue
		}
		for _, tag := range t.Tags {
			seen[tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func (ws *WalletService) Counts() (active, completed, deleted int) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for _, t := range ws.tickets {
		switch t.State {
		case models.StateCompleted:
			completed++
		case models.StateDeleted:
			deleted++
		default:
			active++
		}
	}
	return
}

// indexOf must be called with the mutex held.
func (ws *WalletService) indexOf(id string) int {
	for i, t := range ws.tickets {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// --- templates ---

func (ws *WalletService) Templates() []*models.Template {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	out := make([]*models.Template, 0, len(ws.templates))
	for _, tpl := range ws.templates {
		out = append(out, tpl.Clone())
	}
	return out
}

func (ws *WalletService) AddTemplate(tpl *models.Template) (*models.Template, error) {
	c := tpl.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = nowMs()
	}

	ws.mu.Lock()
	ws.templates = append(ws.templates, c)
	ws.mu.Unlock()

	ws.persistTemplates()
	return c.Clone(), nil
}

func (ws *WalletService) RemoveTemplate(id string) error {
	ws.mu.Lock()
	idx := -1
	for i, tpl := range ws.templates {
		if tpl.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		ws.mu.Unlock()
		return ErrTemplateNotFound
	}
	ws.templates = append(ws.templates[:idx], ws.templates[idx+1:]...)
	ws.mu.Unlock()

	ws.persistTemplates()
	return nil
}

// --- settings ---

func (ws *WalletService) GetSettings() *models.Settings {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.settings.Clone()
}

func (ws *WalletService) PutSettings(s *models.Settings) error {
	ws.mu.Lock()
	ws.settings = s.Clone()
	ws.mu.Unlock()

	ws.persistSettings()
	return nil
}

// --- background image history ---

func (ws *WalletService) BgHistory() []string {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return append([]string(nil), ws.bgHistory...)
}

func (ws *WalletService) AddBgHistory(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	ws.mu.Lock()
	ws.bgHistory = mergeBgHistory([]string{url}, ws.bgHistory)
	ws.mu.Unlock()

	ws.persistBgHistory()
	return nil
}

func (ws *WalletService) RemoveBgHistory(url string) error {
	ws.mu.Lock()
	keep := ws.bgHistory[:0]
	for _, v := range ws.bgHistory {
		if v != url {
			keep = append(keep, v)
		}
	}
	ws.bgHistory = keep
	ws.mu.Unlock()

	ws.persistBgHistory()
	return nil
}

// mergeBgHistory unions incoming (most recent first) with existing, dropping
// duplicates by value and capping the result.
func mergeBgHistory(incoming, existing []string) []string {
	out := make([]string, 0, models.BgHistoryCap)
	seen := make(map[string]struct{})
	for _, list := range [][]string{incoming, existing} {
		for _, v := range list {
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
			if len(out) == models.BgHistoryCap {
				return out
			}
		}
	}
	return out
}

// --- export / import ---

func (ws *WalletService) Snapshot() *models.ExportPayload {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	tasks := make([]*models.Ticket, 0, len(ws.tickets))
	for _, t := range ws.tickets {
		tasks = append(tasks, t.Clone())
	}
	templates := make([]*models.Template, 0, len(ws.templates))
	for _, tpl := range ws.templates {
		templates = append(templates, tpl.Clone())
	}

	return &models.ExportPayload{
		Version:   models.ExportVersion,
		Timestamp: nowMs(),
		Settings:  ws.settings.Clone(),
		Tasks:     tasks,
		Templates: templates,
		BgHistory: append([]string(nil), ws.bgHistory...),
	}
}

func (ws *WalletService) ImportMerge(p *models.ExportPayload, opts models.ImportOptions) (*models.ImportSummary, error) {
	if opts.Mode != models.ImportAppend && opts.Mode != models.ImportOverwrite {
		return nil, fmt.Errorf("unknown import mode %q", opts.Mode)
	}

	summary := &models.ImportSummary{}

	ws.mu.Lock()
	if opts.Mode == models.ImportOverwrite {
		ws.tickets = ws.tickets[:0]
	}
	for _, t := range p.Tasks {
		if opts.Mode == models.ImportAppend && ws.indexOf(t.ID) >= 0 {
			summary.TicketsSkipped++
			continue
		}
		ws.tickets = append(ws.tickets, t.Clone())
		summary.TicketsAdded++
	}

	if opts.WithTemplates && p.Templates != nil {
		if opts.Mode == models.ImportOverwrite {
			ws.templates = ws.templates[:0]
		}
		for _, tpl := range p.Templates {
			dup := false
			for _, cur := range ws.templates {
				if cur.ID == tpl.ID {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
			ws.templates = append(ws.templates, tpl.Clone())
			summary.TemplatesAdded++
		}
	}

	if opts.WithBgHistory && p.BgHistory != nil {
		if opts.Mode == models.ImportOverwrite {
			ws.bgHistory = mergeBgHistory(p.BgHistory, nil)
		} else {
			ws.bgHistory = mergeBgHistory(p.BgHistory, ws.bgHistory)
		}
		summary.BgHistoryMerged = len(ws.bgHistory)
	}

	if opts.WithSettings && p.Settings != nil {
		ws.settings = p.Settings.Clone()
		summary.SettingsReplaced = true
	}
	ws.mu.Unlock()

	ws.persistTasks()
	if opts.WithTemplates {
		ws.persistTemplates()
	}
	if opts.WithBgHistory {
		ws.persistBgHistory()
	}
	if summary.SettingsReplaced {
		ws.persistSettings()
	}
	return summary, nil
}

// --- backup meta ---

func (ws *WalletService) Meta() *models.Meta {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	m := *ws.meta
	return &m
}

func (ws *WalletService) SetLastBackup(ts time.Time) error {
	ws.mu.Lock()
	ws.meta.LastBackupAt = ts.UnixMilli()
	ws.mu.Unlock()

	ws.persistMeta()
	return nil
}

// --- persistence ---

func (ws *WalletService) persistTasks() {
	ws.mu.RLock()
	data, err := json.Marshal(ws.tickets)
	ws.mu.RUnlock()
	ws.writeAggregate(models.KeyTasks, data, err)
}

func (ws *WalletService) persistSettings() {
	ws.mu.RLock()
	data, err := json.Marshal(ws.settings)
	ws.mu.RUnlock()
	ws.writeAggregate(models.KeySettings, data, err)
}

func (ws *WalletService) persistTemplates() {
	ws.mu.RLock()
	data, err := json.Marshal(ws.templates)
	ws.mu.RUnlock()
	ws.writeAggregate(models.KeyTemplates, data, err)
}

func (ws *WalletService) persistBgHistory() {
	ws.mu.RLock()
	data, err := json.Marshal(ws.bgHistory)
	ws.mu.RUnlock()
	ws.writeAggregate(models.KeyBgHistory, data, err)
}

func (ws *WalletService) persistMeta() {
	ws.mu.RLock()
	data, err := json.Marshal(ws.meta)
	ws.mu.RUnlock()
	ws.writeAggregate(models.KeyMeta, data, err)
}

func (ws *WalletService) writeAggregate(key string, data []byte, marshalErr error) {
	err := marshalErr
	if err == nil {
		err = ws.store.SetItem(key, data)
	}
	// Errors are tracked per aggregate so a later successful write to a
	// different key cannot mask a stale one.
	ws.storeErrMu.Lock()
	if err != nil {
		ws.storeErrs[key] = err
	} else {
		delete(ws.storeErrs, key)
	}
	ws.storeErrMu.Unlock()
}

func (ws *WalletService) LastStoreErr() error {
	ws.storeErrMu.Lock()
	defer ws.storeErrMu.Unlock()
	if len(ws.storeErrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ws.storeErrs))
	for k := range ws.storeErrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	errs := make([]error, 0, len(keys))
	for _, k := range keys {
		errs = append(errs, fmt.Errorf("%s: %w", k, ws.storeErrs[k]))
	}
	return errors.Join(errs...)
}

func (ws *WalletService) PersistAll() error {
	ws.persistTasks()
	ws.persistSettings()
	ws.persistTemplates()
	ws.persistBgHistory()
	ws.persistMeta()
	return ws.LastStoreErr()
}

// LoadFromStore replaces the in-memory aggregates with the persisted ones.
// Missing keys fall back to empty aggregates; missing settings are seeded
// with defaults so the mandatory key exists from the first run on.
func (ws *WalletService) LoadFromStore() error {
	var tickets []*models.Ticket
	if err := ws.loadAggregate(models.KeyTasks, &tickets); err != nil {
		return err
	}

	var settings *models.Settings
	if err := ws.loadAggregate(models.KeySettings, &settings); err != nil {
		return err
	}
	seedSettings := settings == nil
	if seedSettings {
		settings = models.DefaultSettings(ws.conf.Wallet.DefaultNotifyDays)
	}

	var templates []*models.Template
	if err := ws.loadAggregate(models.KeyTemplates, &templates); err != nil {
		return err
	}

	var bgHistory []string
	if err := ws.loadAggregate(models.KeyBgHistory, &bgHistory); err != nil {
		return err
	}

	meta := &models.Meta{}
	if err := ws.loadAggregate(models.KeyMeta, meta); err != nil {
		return err
	}

	ws.mu.Lock()
	ws.tickets = tickets
	ws.settings = settings
	ws.templates = templates
	ws.bgHistory = mergeBgHistory(bgHistory, nil)
	ws.meta = meta
	ws.mu.Unlock()

	if seedSettings {
		ws.persistSettings()
	}
	return nil
}

func (ws *WalletService) loadAggregate(key string, out interface{}) error {
	data, ok, err := ws.store.GetItem(key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
