package transport

type CreateProductRequest struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Category    string `json:"category"`
	Image       string `json:"image"`
	Stock       int    `json:"stock"`
	Active      *bool  `json:"active"`
}

type PatchProductRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
	Category    *string `json:"category"`
	Image       *string `json:"image"`
	Stock       *int    `json:"stock"`
	Active      *bool   `json:"active"`
}
