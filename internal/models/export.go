package models

// Aggregate keys in the key-value store. Each key holds the entire
// aggregate; every change rewrites the full collection.
const (
	KeyTasks     = "tasks"
	KeySettings  = "settings"
	KeyBgHistory = "bgHistory"
	KeyTemplates = "templates"

	// KeyMeta is internal bookkeeping and never part of the export envelope.
	KeyMeta = "meta"
)

// MandatoryKeys are the aggregates the health check requires to be present.
var MandatoryKeys = []string{KeyTasks, KeySettings}

const (
	ExportVersion = 2

	// BgHistoryCap bounds the background-image history aggregate.
	BgHistoryCap = 20
)

// ExportPayload is the export/backup envelope. The legacy format is a bare
// Ticket list; the importer normalizes it into this shape.
type ExportPayload struct {
	Version   int         `json:"version"`
	Timestamp int64       `json:"timestamp"`
	Settings  *Settings   `json:"settings,omitempty"`
	Tasks     []*Ticket   `json:"tasks"`
	Templates []*Template `json:"templates,omitempty"`
	BgHistory []string    `json:"bgHistory,omitempty"`
}

// Meta holds backup bookkeeping, persisted under KeyMeta.
type Meta struct {
	LastBackupAt int64 `json:"lastBackupAt"` // epoch ms, 0 = never
}

type ImportMode string

const (
	ImportAppend    ImportMode = "append"
	ImportOverwrite ImportMode = "overwrite"
)

// ImportOptions controls what a confirmed import restores. Tasks are always
// included per the chosen mode; the rest is opt-in.
type ImportOptions struct {
	Mode          ImportMode
	WithSettings  bool
	WithTemplates bool
	WithBgHistory bool
}

type ImportSummary struct {
	TicketsAdded     int  `json:"ticketsAdded"`
	TicketsSkipped   int  `json:"ticketsSkipped"`
	TemplatesAdded   int  `json:"templatesAdded"`
	BgHistoryMerged  int  `json:"bgHistoryMerged"`
	SettingsReplaced bool `json:"settingsReplaced"`
}

// BatchPatch is a bulk edit applied to a set of tickets by id.
type BatchPatch struct {
	IDs        []string     `json:"ids"`
	AddTags    []string     `json:"addTags,omitempty"`
	RemoveTags []string     `json:"removeTags,omitempty"`
	Expiry     *string      `json:"expiry,omitempty"`
	State      *TicketState `json:"state,omitempty"`
}
