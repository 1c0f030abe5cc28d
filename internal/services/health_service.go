package services

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"stw/internal/models"
	"stw/internal/storage/interfaces"
	"stw/internal/structures"
)

// HealthReport is the verdict of an on-demand data self-check. Issues flip
// the verdict; recommendations never do.
type HealthReport struct {
	IsHealthy         bool     `json:"isHealthy"`
	Issues            []string `json:"issues"`
	Recommendations   []string `json:"recommendations"`
	IncompleteTickets int      `json:"incompleteTickets"`
	UsageBytes        int64    `json:"usageBytes"`
	QuotaBytes        int64    `json:"quotaBytes"`
	LastBackupAt      int64    `json:"lastBackupAt"`
	CheckedAt         int64    `json:"checkedAt"`
}

type HealthServiceInterface interface {
	Check() *HealthReport
}

// HealthService inspects the persisted aggregates directly, bypassing the
// in-memory state, so the report reflects what would survive a restart.
type HealthService struct {
	conf    *structures.Config
	store   interfaces.StoreInterface
	service WalletServiceInterface
}

func NewHealthService(conf *structures.Config, store interfaces.StoreInterface, service WalletServiceInterface) HealthServiceInterface {
	return &HealthService{
		conf:    conf,
		store:   store,
		service: service,
	}
}

// Check runs every rule unconditionally; the caller always gets the complete
// diagnostic picture in one pass.
func (hs *HealthService) Check() *HealthReport {
	report := &HealthReport{
		Issues:          []string{},
		Recommendations: []string{},
		CheckedAt:       time.Now().UnixMilli(),
	}

	// 1. Mandatory aggregate keys must be present.
	mandatoryPresent := true
	for _, key := range models.MandatoryKeys {
		_, ok, err := hs.store.GetItem(key)
		if err != nil {
			report.Issues = append(report.Issues, fmt.Sprintf("cannot read aggregate %q: %s", key, err))
			mandatoryPresent = false
			continue
		}
		if !ok {
			report.Issues = append(report.Issues, fmt.Sprintf("mandatory aggregate %q is missing", key))
			mandatoryPresent = false
		}
	}

	// 2. Tasks aggregate must be a list; elements without an id or a product
	// name count as incomplete (soft).
	if data, ok, err := hs.store.GetItem(models.KeyTasks); err == nil && ok {
		var raw []map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			report.Issues = append(report.Issues, "tasks aggregate is not a list")
		} else {
			for _, rec := range raw {
				if emptyJSONString(rec["id"]) || emptyJSONString(rec["productName"]) {
					report.IncompleteTickets++
				}
			}
			if report.IncompleteTickets > 0 {
				report.Recommendations = append(report.Recommendations,
					fmt.Sprintf("%d ticket(s) lack an id or product name", report.IncompleteTickets))
			}
		}
	}

	// 3. Settings aggregate must decode as an object when present.
	if data, ok, err := hs.store.GetItem(models.KeySettings); err == nil && ok {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			report.Issues = append(report.Issues, "settings aggregate is not an object")
		}
	}

	// 4. Storage quota usage (soft).
	report.QuotaBytes = int64(hs.conf.Storage.QuotaMB) * 1024 * 1024
	if usage, err := hs.store.Usage(); err == nil {
		report.UsageBytes = usage
		if report.QuotaBytes > 0 {
			percent := usage * 100 / report.QuotaBytes
			if percent > int64(hs.conf.Wallet.UsageWarnPercent) {
				report.Recommendations = append(report.Recommendations,
					fmt.Sprintf("storage usage at %d%% of quota, consider exporting and pruning", percent))
			}
		}
	}

	// 5. Backup age (soft).
	meta := hs.service.Meta()
	report.LastBackupAt = meta.LastBackupAt
	if meta.LastBackupAt == 0 {
		report.Recommendations = append(report.Recommendations,
			"no cloud backup has been made yet")
	} else {
		age := time.Since(time.UnixMilli(meta.LastBackupAt))
		if age > hs.conf.Wallet.BackupMaxAge {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("last backup is %d day(s) old", int(age.Hours()/24)))
		}
	}

	// 6. Data dir writability (soft).
	if err := hs.store.Probe(); err != nil {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("storage dir is not writable: %s", err))
	}

	if err := hs.service.LastStoreErr(); err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("last aggregate write failed: %s", err))
	}

	report.IsHealthy = mandatoryPresent && len(report.Issues) == 0
	return report
}

func emptyJSONString(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false // non-string values are a schema concern, not emptiness
	}
	return s == ""
}
