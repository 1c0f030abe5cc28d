package controllers

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"stw/internal/services"
)

type HealthController struct {
	service   services.WalletServiceInterface
	health    services.HealthServiceInterface
	startTime time.Time
}

type healthResponse struct {
	Status           string  `json:"status"`
	Uptime           string  `json:"uptime"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	TicketsActive    int     `json:"tickets_active"`
	TicketsCompleted int     `json:"tickets_completed"`
	TicketsDeleted   int     `json:"tickets_deleted"`
	Templates        int     `json:"templates"`
}

// Health is the cheap liveness view; DataHealth runs the full diagnostics.
func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	active, completed, deleted := hc.service.Counts()
	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:           "ok",
		Uptime:           formatDuration(uptime),
		UptimeSeconds:    uptime.Seconds(),
		TicketsActive:    active,
		TicketsCompleted: completed,
		TicketsDeleted:   deleted,
		Templates:        len(hc.service.Templates()),
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (hc *HealthController) DataHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, hc.health.Check())
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(service services.WalletServiceInterface, health services.HealthServiceInterface) *HealthController {
	return &HealthController{
		service:   service,
		health:    health,
		startTime: time.Now(),
	}
}
