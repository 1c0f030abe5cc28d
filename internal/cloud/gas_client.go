package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"stw/internal/importer"
	"stw/internal/models"
	"stw/internal/providers"
	"stw/internal/services"
	"stw/internal/structures"
)

var ErrNotConfigured = errors.New("cloud backup endpoint not configured")

const (
	defaultFilename = "ticket-wallet-backup.json"

	// maxRestoreBody bounds what we accept back from the endpoint; the
	// network is an untrusted input source like any user file.
	maxRestoreBody = 64 << 20
)

type GasClientInterface interface {
	Configured() bool
	Backup(ctx context.Context) (*models.Meta, error)
	Fetch(ctx context.Context) ([]byte, error)
}

// GasClient talks to a user-supplied Google Apps Script endpoint. The URL is
// re-read from settings on every call so a settings update takes effect
// immediately, and it must pass the strict allow-list before any request.
type GasClient struct {
	service services.WalletServiceInterface
	client  *http.Client
	logger  providers.Logger
}

func NewGasClient(conf *structures.Config, service services.WalletServiceInterface, logger providers.Logger) GasClientInterface {
	return &GasClient{
		service: service,
		client:  &http.Client{Timeout: conf.Backup.Timeout},
		logger:  logger,
	}
}

func (gc *GasClient) Configured() bool {
	s := gc.service.GetSettings()
	return importer.IsValidGasURL(s.CloudBackup.URL)
}

func (gc *GasClient) endpoint() (*models.CloudBackupSettings, error) {
	s := gc.service.GetSettings()
	cb := s.CloudBackup
	if cb.URL == "" {
		return nil, ErrNotConfigured
	}
	if !importer.IsValidGasURL(cb.URL) {
		return nil, fmt.Errorf("refusing backup endpoint %q: not an https script.google.com URL", cb.URL)
	}
	if cb.Filename == "" {
		cb.Filename = defaultFilename
	}
	return &cb, nil
}

type gasUploadRequest struct {
	Filename string `json:"filename"`
	Folder   string `json:"folder,omitempty"`
	Content  string `json:"content"`
}

type gasResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Backup POSTs the full export envelope and records the backup timestamp on
// success.
func (gc *GasClient) Backup(ctx context.Context) (*models.Meta, error) {
	cb, err := gc.endpoint()
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(gc.service.Snapshot())
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(gasUploadRequest{
		Filename: cb.Filename,
		Folder:   cb.Folder,
		Content:  string(snapshot),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cb.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := gc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backup upload failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backup endpoint returned HTTP %d", resp.StatusCode)
	}

	var gr gasResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("unexpected backup response: %w", err)
	}
	if gr.Error != "" {
		return nil, fmt.Errorf("backup endpoint error: %s", gr.Error)
	}

	now := time.Now()
	if err := gc.service.SetLastBackup(now); err != nil {
		gc.logger.Warnf(providers.TypeApp, "Backup done but meta not persisted: %s", err)
	}
	gc.logger.Infof(providers.TypeApp, "Cloud backup uploaded as %s", cb.Filename)
	return gc.service.Meta(), nil
}

// Fetch GETs the stored backup and returns the raw body. Callers must run it
// through the import validator before touching any aggregate.
func (gc *GasClient) Fetch(ctx context.Context) ([]byte, error) {
	cb, err := gc.endpoint()
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("filename", cb.Filename)
	if cb.Folder != "" {
		q.Set("folder", cb.Folder)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cb.URL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := gc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backup download failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRestoreBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backup endpoint returned HTTP %d", resp.StatusCode)
	}

	// The endpoint signals failures inside a 200 body.
	var gr gasResponse
	if err := json.Unmarshal(raw, &gr); err == nil && gr.Error != "" {
		return nil, fmt.Errorf("backup endpoint error: %s", gr.Error)
	}
	return raw, nil
}
