package controllers

import (
	"errors"
	"net/http"

	"stw/internal/cloud"
	"stw/internal/importer"
	"stw/internal/providers"
	"stw/internal/services"
)

type BackupController struct {
	logger    providers.Logger
	service   services.WalletServiceInterface
	cache     providers.CacheProviderInterface
	gas       cloud.GasClientInterface
	validator *importer.Validator
	metrics   providers.MetricsProviderInterface
}

func NewBackupController(logger providers.Logger, service services.WalletServiceInterface, cache providers.CacheProviderInterface, gas cloud.GasClientInterface, validator *importer.Validator, metrics providers.MetricsProviderInterface) *BackupController {
	return &BackupController{
		logger:    logger,
		service:   service,
		cache:     cache,
		gas:       gas,
		validator: validator,
		metrics:   metrics,
	}
}

// RunBackup uploads the current snapshot. Network failures surface as a
// status plus message; they are never retried automatically.
func (bc *BackupController) RunBackup(w http.ResponseWriter, r *http.Request) {
	meta, err := bc.gas.Backup(r.Context())
	if errors.Is(err, cloud.ErrNotConfigured) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		bc.metrics.IncBackupsTotal("error")
		bc.logger.Errorf(providers.TypePost, "Cloud backup failed: %s", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	bc.metrics.IncBackupsTotal("ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"lastBackupAt": meta.LastBackupAt,
	})
}

// RestoreBackup fetches the stored backup and pushes it through the same
// validation path as a file upload before merging.
func (bc *BackupController) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	data, err := bc.gas.Fetch(r.Context())
	if errors.Is(err, cloud.ErrNotConfigured) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		bc.logger.Errorf(providers.TypePost, "Cloud restore failed: %s", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	result := bc.validator.Validate(data)
	if !result.OK {
		writeValidationErrors(w, result.Errors)
		return
	}

	summary, err := bc.service.ImportMerge(result.Payload, importOptions(r))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	// The merge touches every aggregate a cached response can be built from.
	dropTicketCaches(bc.cache)
	bc.cache.Del("templates")
	writeJSON(w, http.StatusOK, summary)
}

func (bc *BackupController) BackupStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configured":   bc.gas.Configured(),
		"lastBackupAt": bc.service.Meta().LastBackupAt,
	})
}
