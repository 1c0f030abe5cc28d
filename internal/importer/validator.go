package importer

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"

	"stw/internal/models"
)

// maxReportedErrors caps how many field errors reach the user; the raw
// schema error tree is never exposed.
const maxReportedErrors = 3

type Result struct {
	OK      bool
	Errors  []string
	Payload *models.ExportPayload
	Legacy  bool
}

type Validator struct {
	schema *gojsonschema.Schema
}

func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(importSchema))
	if err != nil {
		return nil, fmt.Errorf("compile import schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

func fail(errs ...string) *Result {
	if len(errs) > maxReportedErrors {
		errs = errs[:maxReportedErrors]
	}
	return &Result{OK: false, Errors: errs}
}

// Validate checks arbitrary external JSON and produces either a typed
// payload or a descriptive rejection, never a partial result. Both accepted
// shapes are handled: the envelope object and the legacy bare ticket list.
func (v *Validator) Validate(data []byte) *Result {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fail(fmt.Sprintf("invalid JSON: %s", err))
	}

	legacy := false
	if list, isList := doc.([]interface{}); isList {
		doc = map[string]interface{}{"tasks": list}
		legacy = true
	}

	res, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fail(fmt.Sprintf("validation failed: %s", err))
	}
	if !res.Valid() {
		errs := make([]string, 0, maxReportedErrors)
		for _, e := range res.Errors() {
			errs = append(errs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
			if len(errs) == maxReportedErrors {
				break
			}
		}
		return fail(errs...)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return fail(fmt.Sprintf("cannot normalize payload: %s", err))
	}
	var payload models.ExportPayload
	if err := json.Unmarshal(normalized, &payload); err != nil {
		return fail(fmt.Sprintf("cannot decode payload: %s", err))
	}

	if errs := checkURLs(&payload); len(errs) > 0 {
		return fail(errs...)
	}

	return &Result{OK: true, Payload: &payload, Legacy: legacy}
}

// checkURLs applies the dual URL policy the schema cannot express: loose
// http/https for redeem links, strict allow-list for the cloud integration.
func checkURLs(p *models.ExportPayload) []string {
	var errs []string
	for i, t := range p.Tasks {
		if t.RedeemURL != "" && !IsValidRedeemURL(t.RedeemURL) {
			errs = append(errs, fmt.Sprintf("tasks.%d.redeemUrl: not a well-formed http(s) URL", i))
		}
	}
	for i, tpl := range p.Templates {
		if tpl.RedeemURL != "" && !IsValidRedeemURL(tpl.RedeemURL) {
			errs = append(errs, fmt.Sprintf("templates.%d.redeemUrl: not a well-formed http(s) URL", i))
		}
	}
	if p.Settings != nil && p.Settings.CloudBackup.URL != "" && !IsValidGasURL(p.Settings.CloudBackup.URL) {
		errs = append(errs, "settings.cloudBackup.url: must be an https script.google.com URL")
	}
	return errs
}
