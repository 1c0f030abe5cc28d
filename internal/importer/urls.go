package importer

import "net/url"

// gasHost is the only hostname the cloud-backup integration may point at.
// The general redeemUrl check is deliberately looser; the privileged
// integration URL gets an exact allow-list to keep a user-editable field
// from being pointed anywhere else.
const gasHost = "script.google.com"

// IsValidRedeemURL accepts any syntactically well-formed http/https URL.
func IsValidRedeemURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidGasURL requires https and the exact Apps Script hostname.
func IsValidGasURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && u.Hostname() == gasHost
}
