package models

// ViewConfig holds the visual configuration of a single lifecycle view.
type ViewConfig struct {
	Background  string  `json:"background,omitempty"`
	CardColor   string  `json:"cardColor,omitempty"`
	CardOpacity float64 `json:"cardOpacity,omitempty"`
	TextColor   string  `json:"textColor,omitempty"`
}

type TelegramSettings struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken,omitempty"`
	ChatID   int64  `json:"chatId,omitempty"`
}

type CloudBackupSettings struct {
	URL      string `json:"url,omitempty"`
	Folder   string `json:"folder,omitempty"`
	Filename string `json:"filename,omitempty"`
	Auto     bool   `json:"auto"`
}

type Settings struct {
	NotifyDays  int                    `json:"notifyDays"`
	AppTitle    string                 `json:"appTitle,omitempty"`
	Views       map[string]*ViewConfig `json:"views,omitempty"`
	Telegram    TelegramSettings       `json:"telegram"`
	CloudBackup CloudBackupSettings    `json:"cloudBackup"`
}

func DefaultSettings(notifyDays int) *Settings {
	if notifyDays <= 0 {
		notifyDays = 3
	}
	return &Settings{
		NotifyDays: notifyDays,
		AppTitle:   "Ticket Wallet",
		Views: map[string]*ViewConfig{
			string(StateActive):    {},
			string(StateCompleted): {},
			string(StateDeleted):   {},
		},
	}
}

func (s *Settings) Clone() *Settings {
	c := *s
	if s.Views != nil {
		c.Views = make(map[string]*ViewConfig, len(s.Views))
		for k, v := range s.Views {
			vc := *v
			c.Views[k] = &vc
		}
	}
	return &c
}
