package controllers

import (
	"errors"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"

	"stw/internal/importer"
	"stw/internal/models"
	"stw/internal/notify"
	"stw/internal/providers"
	"stw/internal/services"
)

const (
	maxRequestBodySize = 16 << 20
	// maxImportBodySize allows for embedded base64 images in import payloads.
	maxImportBodySize = 64 << 20
)

type ApiController struct {
	logger    providers.Logger
	service   services.WalletServiceInterface
	cache     providers.CacheProviderInterface
	validator *importer.Validator
	notifier  notify.NotifierInterface
}

func NewApiController(logger providers.Logger, service services.WalletServiceInterface, cache providers.CacheProviderInterface, validator *importer.Validator, notifier notify.NotifierInterface) *ApiController {
	return &ApiController{
		logger:    logger,
		service:   service,
		cache:     cache,
		validator: validator,
		notifier:  notifier,
	}
}

func getView(r *http.Request) (models.TicketState, bool) {
	view := r.URL.Query().Get("view")
	if view == "" {
		return models.StateActive, true
	}
	if !models.ValidState(view) {
		return "", false
	}
	return models.TicketState(view), true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func writeValidationErrors(w http.ResponseWriter, errs []string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]string{"errors": errs})
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

// invalidateTicketCaches drops every cached response a ticket mutation can
// stale out.
func (ac *ApiController) invalidateTicketCaches() {
	dropTicketCaches(ac.cache)
}

func dropTicketCaches(cache providers.CacheProviderInterface) {
	for _, state := range []models.TicketState{models.StateActive, models.StateCompleted, models.StateDeleted} {
		cache.Del("list:" + string(state))
	}
	cache.Del("expiring")
	cache.Del("tags")
}

// logStoreLag reports a write-through failure without failing the request;
// the in-memory state is the source of truth and storage is its mirror.
func (ac *ApiController) logStoreLag() {
	if err := ac.service.LastStoreErr(); err != nil {
		ac.logger.Warnf(providers.TypePost, "Aggregate write lagging: %s", err)
	}
}

// --- tickets ---

func (ac *ApiController) GetTickets(w http.ResponseWriter, r *http.Request) {
	view, ok := getView(r)
	if !ok {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.serveFromCacheOrCompute(w, "list:"+string(view), func() (any, error) {
		return ac.service.ListTickets(view), nil
	})
}

func (ac *ApiController) GetExpiring(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "expiring", func() (any, error) {
		return ac.service.ExpiringSoon(time.Now()), nil
	})
}

func (ac *ApiController) GetTags(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "tags", func() (any, error) {
		return ac.service.Tags(), nil
	})
}

func (ac *ApiController) CreateTicket(w http.ResponseWriter, r *http.Request) {
	if templateID := r.URL.Query().Get("template"); templateID != "" {
		ticket, err := ac.service.CreateFromTemplate(templateID)
		if errors.Is(err, services.ErrTemplateNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		ac.invalidateTicketCaches()
		ac.logStoreLag()
		writeJSON(w, http.StatusCreated, ticket)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload models.Ticket
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if payload.RedeemURL != "" && !importer.IsValidRedeemURL(payload.RedeemURL) {
		writeValidationErrors(w, []string{"redeemUrl: not a well-formed http(s) URL"})
		return
	}

	ticket, err := ac.service.AddTicket(&payload)
	if errors.Is(err, services.ErrWalletFull) {
		http.Error(w, "Conflict", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.invalidateTicketCaches()
	ac.logStoreLag()
	writeJSON(w, http.StatusCreated, ticket)
}

func (ac *ApiController) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload models.Ticket
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	payload.ID = id
	if payload.RedeemURL != "" && !importer.IsValidRedeemURL(payload.RedeemURL) {
		writeValidationErrors(w, []string{"redeemUrl: not a well-formed http(s) URL"})
		return
	}

	ticket, err := ac.service.UpdateTicket(&payload)
	if errors.Is(err, services.ErrTicketNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.invalidateTicketCaches()
	ac.logStoreLag()
	writeJSON(w, http.StatusOK, ticket)
}

func (ac *ApiController) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var patch models.BatchPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if len(patch.IDs) == 0 {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	updated, err := ac.service.BatchUpdate(&patch)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.invalidateTicketCaches()
	ac.logStoreLag()
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (ac *ApiController) ticketAction(w http.ResponseWriter, r *http.Request, action func(id string) (*models.Ticket, error)) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ticket, err := action(id)
	if errors.Is(err, services.ErrTicketNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.invalidateTicketCaches()
	ac.logStoreLag()
	writeJSON(w, http.StatusOK, ticket)
}

func (ac *ApiController) CompleteTicket(w http.ResponseWriter, r *http.Request) {
	ac.ticketAction(w, r, func(id string) (*models.Ticket, error) {
		ticket, err := ac.service.CompleteTicket(id)
		if err == nil {
			ac.notifier.TicketCompleted(ticket)
		}
		return ticket, err
	})
}

func (ac *ApiController) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	ac.ticketAction(w, r, func(id string) (*models.Ticket, error) {
		ticket, err := ac.service.DeleteTicket(id)
		if err == nil {
			ac.notifier.TicketDeleted(ticket)
		}
		return ticket, err
	})
}

func (ac *ApiController) RestoreTicket(w http.ResponseWriter, r *http.Request) {
	ac.ticketAction(w, r, ac.service.RestoreTicket)
}

func (ac *ApiController) PurgeTicket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	err := ac.service.PurgeTicket(id)
	if errors.Is(err, services.ErrTicketNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.invalidateTicketCaches()
	ac.logStoreLag()
	w.WriteHeader(http.StatusNoContent)
}

// --- templates ---

func (ac *ApiController) GetTemplates(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "templates", func() (any, error) {
		return ac.service.Templates(), nil
	})
}

func (ac *ApiController) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload models.Template
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if payload.Name == "" {
		writeValidationErrors(w, []string{"name: required"})
		return
	}
	if payload.RedeemURL != "" && !importer.IsValidRedeemURL(payload.RedeemURL) {
		writeValidationErrors(w, []string{"redeemUrl: not a well-formed http(s) URL"})
		return
	}

	tpl, err := ac.service.AddTemplate(&payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.cache.Del("templates")
	ac.logStoreLag()
	writeJSON(w, http.StatusCreated, tpl)
}

func (ac *ApiController) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	err := ac.service.RemoveTemplate(id)
	if errors.Is(err, services.ErrTemplateNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.cache.Del("templates")
	ac.logStoreLag()
	w.WriteHeader(http.StatusNoContent)
}

// --- settings ---

func (ac *ApiController) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ac.service.GetSettings())
}

func (ac *ApiController) PutSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload models.Settings
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var errs []string
	if payload.NotifyDays < 0 || payload.NotifyDays > 365 {
		errs = append(errs, "notifyDays: must be between 0 and 365")
	}
	if payload.CloudBackup.URL != "" && !importer.IsValidGasURL(payload.CloudBackup.URL) {
		errs = append(errs, "cloudBackup.url: must be an https script.google.com URL")
	}
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}

	if err := ac.service.PutSettings(&payload); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.cache.Del("expiring")
	ac.logStoreLag()
	writeJSON(w, http.StatusOK, ac.service.GetSettings())
}

// --- background image history ---

type bgHistoryRequest struct {
	Url string `json:"url"`
}

func (ac *ApiController) GetBgHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ac.service.BgHistory())
}

func (ac *ApiController) AddBgHistory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload bgHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Url == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	_ = ac.service.AddBgHistory(payload.Url)
	ac.logStoreLag()
	writeJSON(w, http.StatusOK, ac.service.BgHistory())
}

func (ac *ApiController) RemoveBgHistory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload bgHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Url == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	_ = ac.service.RemoveBgHistory(payload.Url)
	ac.logStoreLag()
	writeJSON(w, http.StatusOK, ac.service.BgHistory())
}

// --- export / import ---

func (ac *ApiController) Export(w http.ResponseWriter, r *http.Request) {
	snapshot := ac.service.Snapshot()
	gson, err := json.Marshal(snapshot)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		`attachment; filename="ticket-wallet-export-`+time.Now().Format("2006-01-02")+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func importOptions(r *http.Request) models.ImportOptions {
	q := r.URL.Query()
	mode := models.ImportMode(q.Get("mode"))
	if mode == "" {
		mode = models.ImportAppend
	}
	return models.ImportOptions{
		Mode:          mode,
		WithSettings:  cast.ToBool(q.Get("settings")),
		WithTemplates: cast.ToBool(q.Get("templates")),
		WithBgHistory: cast.ToBool(q.Get("bgHistory")),
	}
}

func (ac *ApiController) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	result := ac.validator.Validate(data)
	if !result.OK {
		writeValidationErrors(w, result.Errors)
		return
	}

	summary, err := ac.service.ImportMerge(result.Payload, importOptions(r))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.invalidateTicketCaches()
	ac.cache.Del("templates")
	ac.logStoreLag()
	writeJSON(w, http.StatusOK, summary)
}
