package checkout

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

type Locale string

const (
	LocaleFR Locale = "fr"
	LocaleEN Locale = "en"
)

// NormalizeLocale maps any tag starting with "en" to English and everything
// else to French.
func NormalizeLocale(raw string) Locale {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "en") {
		return LocaleEN
	}
	return LocaleFR
}

type Request struct {
	Items      []CartLine `json:"items"`
	Locale     string     `json:"locale"`
	SuccessURL string     `json:"success_url"`
	CancelURL  string     `json:"cancel_url"`

	// Referer is the page the shopper clicked checkout from. Taken from the
	// request header, never from the body.
	Referer string `json:"-"`
}

// UnmarshalJSON decodes each field on its own. A wrongly typed optional field
// is left empty and a line that is not an object becomes a blank line, so one
// bad value never discards the rest of the cart.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw struct {
		Items      json.RawMessage `json:"items"`
		Locale     json.RawMessage `json:"locale"`
		SuccessURL json.RawMessage `json:"success_url"`
		CancelURL  json.RawMessage `json:"cancel_url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Locale = stringOrEmpty(raw.Locale)
	r.SuccessURL = stringOrEmpty(raw.SuccessURL)
	r.CancelURL = stringOrEmpty(raw.CancelURL)
	r.Items = nil

	var lines []json.RawMessage
	if err := json.Unmarshal(raw.Items, &lines); err != nil {
		return nil
	}
	for _, l := range lines {
		line := CartLine{Quantity: 1}
		if !isAbsent(l) {
			if err := json.Unmarshal(l, &line); err != nil {
				line = CartLine{Quantity: 1}
			}
		}
		r.Items = append(r.Items, line)
	}
	return nil
}

func stringOrEmpty(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

type Destinations struct {
	SuccessURL string
	CancelURL  string
}

type Result struct {
	URL       string
	OrderID   uuid.UUID
	SessionID string
}
