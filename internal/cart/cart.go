// Package cart holds the visitor cart: a pure reducer over line items, its
// versioned persisted form and the Redis slot it lives in.
package cart

// Item is one cart line. Price is in minor units and snapshotted when the
// product is first added.
type Item struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Product is what Add needs to know about a catalog entry.
type Product struct {
	ID    string
	Title string
	Price int64
}

// Cart is immutable: every operation returns a new value.
type Cart struct {
	Items []Item `json:"items"`
}

func (c Cart) index(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// Add increments the line for p, inserting it at quantity 1 when absent.
func (c Cart) Add(p Product) Cart {
	out := c.clone()
	if i := out.index(p.ID); i >= 0 {
		out.Items[i].Quantity++
		return out
	}
	out.Items = append(out.Items, Item{ProductID: p.ID, Title: p.Title, Price: p.Price, Quantity: 1})
	return out
}

// Remove decrements the line for productID and drops it at zero. Absent
// products are a no-op.
func (c Cart) Remove(productID string) Cart {
	i := c.index(productID)
	if i < 0 {
		return c
	}
	out := c.clone()
	if out.Items[i].Quantity <= 1 {
		out.Items = append(out.Items[:i], out.Items[i+1:]...)
		return out
	}
	out.Items[i].Quantity--
	return out
}

func (c Cart) Clear() Cart {
	return Cart{Items: []Item{}}
}

func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

func (c Cart) Quantity(productID string) int {
	if i := c.index(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c Cart) Total() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.Price * int64(it.Quantity)
	}
	return total
}

func (c Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
