package checkout

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CartLine is one {slug, qty} pair from the browser cart. Decoding never
// fails on the quantity: anything unusable becomes 1.
type CartLine struct {
	Slug     string
	Quantity int
}

func (c *CartLine) UnmarshalJSON(data []byte) error {
	var raw struct {
		Slug     json.RawMessage `json:"slug"`
		Qty      json.RawMessage `json:"qty"`
		Quantity json.RawMessage `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var slug string
	if err := json.Unmarshal(raw.Slug, &slug); err == nil {
		c.Slug = strings.TrimSpace(slug)
	}

	q := raw.Qty
	if isAbsent(q) {
		q = raw.Quantity
	}
	c.Quantity = coerceQuantity(q)
	return nil
}

func (c CartLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Slug string `json:"slug"`
		Qty  int    `json:"qty"`
	}{c.Slug, c.Quantity})
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// coerceQuantity turns a JSON value into a quantity of at least 1. Numbers and
// numeric strings are truncated toward zero.
func coerceQuantity(raw json.RawMessage) int {
	if isAbsent(raw) {
		return 1
	}

	var f float64
	var s string
	switch {
	case json.Unmarshal(raw, &f) == nil:
	case json.Unmarshal(raw, &s) == nil:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 1
		}
		f = parsed
	default:
		return 1
	}

	if math.IsNaN(f) || f < 1 {
		return 1
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Trunc(f))
}

// mergeLines drops blank slugs and folds repeated slugs into one line, keeping
// first-seen order.
func mergeLines(lines []CartLine) ([]string, map[string]int) {
	slugs := make([]string, 0, len(lines))
	qty := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.Slug == "" {
			continue
		}
		if _, seen := qty[l.Slug]; !seen {
			slugs = append(slugs, l.Slug)
		}
		q := l.Quantity
		if q < 1 {
			q = 1
		}
		qty[l.Slug] += q
	}
	return slugs, qty
}
