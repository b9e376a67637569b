package models

import (
	"strings"
	"time"
)

// Product is a catalog entry with a per-size stock map.
type Product struct {
	ID          string         `json:"id" bson:"_id"`
	Brand       string         `json:"brand" bson:"brand"`
	Name        string         `json:"name" bson:"name"`
	Description string         `json:"description" bson:"description"`
	Price       float64        `json:"price" bson:"price"`
	ImageURL    string         `json:"imageUrl" bson:"imageUrl"`
	Category    string         `json:"category" bson:"category"`
	Sizes       map[string]int `json:"sizes" bson:"sizes"`
	CreatedAt   time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Stock returns the quantity on hand for size and whether the size exists.
func (p *Product) Stock(size string) (int, bool) {
	qty, ok := p.Sizes[size]
	return qty, ok
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() *Product {
	c := *p
	c.Sizes = make(map[string]int, len(p.Sizes))
	for size, qty := range p.Sizes {
		c.Sizes[size] = qty
	}
	return &c
}

// ValidSizeLabel reports whether label can be used as a stock map key.
// Labels end up in document field paths, so dots and a leading '$' are
// rejected.
func ValidSizeLabel(label string) bool {
	return label != "" && !strings.Contains(label, ".") && !strings.HasPrefix(label, "$")
}

// CreateProductRequest is the body of POST /api/products.
type CreateProductRequest struct {
	Brand       string         `json:"brand"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	ImageURL    string         `json:"imageUrl"`
	Category    string         `json:"category"`
	Sizes       map[string]int `json:"sizes"`
}

// UpdateProductRequest is the body of PUT /api/products/:id. Zero values
// leave the stored field unchanged.
type UpdateProductRequest struct {
	Brand       string         `json:"brand"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	ImageURL    string         `json:"imageUrl"`
	Category    string         `json:"category"`
	Sizes       map[string]int `json:"sizes"`
}

// Apply copies the non-zero fields of req onto p.
func (req *UpdateProductRequest) Apply(p *Product) {
	if req.Brand != "" {
		p.Brand = req.Brand
	}
	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Description != "" {
		p.Description = req.Description
	}
	if req.Price != 0 {
		p.Price = req.Price
	}
	if req.ImageURL != "" {
		p.ImageURL = req.ImageURL
	}
	if req.Category != "" {
		p.Category = req.Category
	}
	if req.Sizes != nil {
		p.Sizes = make(map[string]int, len(req.Sizes))
		for size, qty := range req.Sizes {
			p.Sizes[size] = qty
		}
	}
}

// RestockRequest is the body of PATCH /api/products/restock.
type RestockRequest struct {
	ProductID string         `json:"productId"`
	Sizes     map[string]int `json:"sizes"`
}
