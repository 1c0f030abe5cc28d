package models

// Template is a named snapshot of reusable ticket fields used to pre-fill
// new tickets. No lifecycle beyond create/delete.
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ProductName string   `json:"productName,omitempty"`
	Image       string   `json:"image,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Serial      string   `json:"serial,omitempty"`
	Expiry      string   `json:"expiry,omitempty"`
	RedeemURL   string   `json:"redeemUrl,omitempty"`
	CreatedAt   int64    `json:"createdAt,omitempty"`
}

func (tpl *Template) Clone() *Template {
	c := *tpl
	c.Tags = append([]string(nil), tpl.Tags...)
	return &c
}
