package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// SchemaVersion is written into every snapshot. Version 1 is the legacy
// untagged array of {id, title, price, qty} with major-unit float prices.
const SchemaVersion = 2

var (
	ErrUnknownSchema = errors.New("unknown cart schema")
	ErrCorrupt       = errors.New("corrupt cart snapshot")
)

type snapshot struct {
	Schema int    `json:"schema"`
	Items  []Item `json:"items"`
}

type legacyItem struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Qty   int     `json:"qty"`
}

func Encode(c Cart) ([]byte, error) {
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(snapshot{Schema: SchemaVersion, Items: items})
}

// Decode loads a snapshot of any known version, migrating older ones.
// Versions newer than SchemaVersion are rejected.
func Decode(data []byte) (Cart, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Cart{Items: []Item{}}, nil
	}

	if data[0] == '[' {
		var legacy []legacyItem
		if err := json.Unmarshal(data, &legacy); err != nil {
			return Cart{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return migrateV1(legacy), nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Cart{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	switch {
	case snap.Schema == SchemaVersion:
		return normalize(snap.Items), nil
	case snap.Schema > SchemaVersion:
		return Cart{}, fmt.Errorf("%w: version %d", ErrUnknownSchema, snap.Schema)
	default:
		return Cart{}, fmt.Errorf("%w: missing schema tag", ErrCorrupt)
	}
}

func migrateV1(legacy []legacyItem) Cart {
	items := make([]Item, 0, len(legacy))
	for _, li := range legacy {
		items = append(items, Item{
			ProductID: li.ID,
			Title:     li.Title,
			Price:     int64(math.Round(li.Price * 100)),
			Quantity:  li.Qty,
		})
	}
	return normalize(items)
}

// normalize merges duplicate lines and drops lines that cannot exist in a
// live cart.
func normalize(items []Item) Cart {
	out := Cart{Items: make([]Item, 0, len(items))}
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 || it.Price < 0 {
			continue
		}
		if i := out.index(it.ProductID); i >= 0 {
			out.Items[i].Quantity += it.Quantity
			continue
		}
		out.Items = append(out.Items, it)
	}
	return out
}
