package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Item is one redemption option. ID is issued by the Store and survives
// edits; positional indices do not survive deletions.
type Item struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name"`
	Points float64 `json:"points"`
	Price  float64 `json:"price"`
}

// ValuePerPoint is the ranking metric. Higher is better.
func (it Item) ValuePerPoint() float64 {
	return it.Price / it.Points
}

func validateItem(it Item) (Item, error) {
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return Item{}, newValidationError("name", "required")
	}
	if err := validateAmount("points", it.Points); err != nil {
		return Item{}, err
	}
	if err := validateAmount("price", it.Price); err != nil {
		return Item{}, err
	}
	return it, nil
}

func validateAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return newValidationError(field, "must be a number")
	}
	if v <= 0 {
		return newValidationError(field, "must be greater than zero")
	}
	return nil
}

// Number decodes a JSON number or a numeric string, the way a text field
// arrives from a form. Anything unparseable becomes NaN so validation, not
// decoding, rejects it.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if uq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(uq)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = Number(math.NaN())
		return nil
	}
	*n = Number(f)
	return nil
}

// blobItem is the persisted item record. Older records carry no id.
type blobItem struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Points Number `json:"points"`
	Price  Number `json:"price"`
}

// encodeCatalog writes the catalog as one JSON object whose keys follow
// category insertion order.
func encodeCatalog(order []string, m map[string][]Item) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, name := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		items := m[name]
		if items == nil {
			items = []Item{}
		}
		v, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("encode category %q: %w", name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeCatalog reads a persisted blob, keeping key order. Items that would
// fail validation are dropped, and so are categories that only held such
// items. A category saved empty is kept. The returned count is the number
// of dropped records.
func decodeCatalog(data []byte, newID func() string) (order []string, m map[string][]Item, dropped int, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, 0, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, 0, fmt.Errorf("catalog blob: want object, got %v", tok)
	}

	m = map[string][]Item{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, 0, err
		}
		name, _ := tok.(string)

		var raw []blobItem
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, 0, fmt.Errorf("catalog blob: category %q: %w", name, err)
		}
		if strings.TrimSpace(name) == "" {
			dropped += 1 + len(raw)
			continue
		}

		if len(raw) == 0 {
			if _, seen := m[name]; !seen {
				order = append(order, name)
				m[name] = []Item{}
			}
			continue
		}

		for _, r := range raw {
			it, err := validateItem(Item{ID: r.ID, Name: r.Name, Points: float64(r.Points), Price: float64(r.Price)})
			if err != nil {
				dropped++
				continue
			}
			if it.ID == "" {
				it.ID = newID()
			}
			if _, seen := m[name]; !seen {
				order = append(order, name)
			}
			m[name] = append(m[name], it)
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, 0, err
	}
	return order, m, dropped, nil
}
