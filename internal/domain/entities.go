package domain

import "time"

// Canonical commerce entities mirrored from the platform.
// Each is uniquely identified by (shop id, external id).

// Customer represents a merchant's customer
type Customer struct {
	ExternalID      int64      `json:"external_id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Phone           string     `json:"phone"`
	TotalSpent      float64    `json:"total_spent"`
	OrdersCount     int        `json:"orders_count"`
	State           string     `json:"state"`
	SourceCreatedAt *time.Time `json:"source_created_at,omitempty"`
	SourceUpdatedAt *time.Time `json:"source_updated_at,omitempty"`
}

// Product represents a catalog product
type Product struct {
	ExternalID      int64      `json:"external_id"`
	Title           string     `json:"title"`
	Handle          string     `json:"handle"`
	Vendor          string     `json:"vendor"`
	ProductType     string     `json:"product_type"`
	Tags            string     `json:"tags"`
	Status          string     `json:"status"`
	SourceCreatedAt *time.Time `json:"source_created_at,omitempty"`
	SourceUpdatedAt *time.Time `json:"source_updated_at,omitempty"`
}

// ProductVariant represents a sellable variant of a product
type ProductVariant struct {
	ExternalID        int64   `json:"external_id"`
	ProductExternalID int64   `json:"product_external_id"`
	Title             string  `json:"title"`
	SKU               string  `json:"sku"`
	Price             float64 `json:"price"`
	InventoryQuantity int     `json:"inventory_quantity"`
}

// Order represents a placed order. CustomerExternalID is nil for guest
// checkouts or when the referenced customer is unknown locally.
type Order struct {
	ExternalID         int64      `json:"external_id"`
	CustomerExternalID *int64     `json:"customer_external_id,omitempty"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	OrderNumber        string     `json:"order_number"`
	FinancialStatus    string     `json:"financial_status"`
	FulfillmentStatus  string     `json:"fulfillment_status"`
	Currency           string     `json:"currency"`
	SubtotalPrice      float64    `json:"subtotal_price"`
	TotalDiscounts     float64    `json:"total_discounts"`
	TotalTax           float64    `json:"total_tax"`
	ShippingPrice      float64    `json:"shipping_price"`
	TotalPrice         float64    `json:"total_price"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	SourceCreatedAt    *time.Time `json:"source_created_at,omitempty"`
	SourceUpdatedAt    *time.Time `json:"source_updated_at,omitempty"`
}

// OrderLineItem represents one line of an order. Product and variant
// references are nil when the referenced row does not exist locally.
type OrderLineItem struct {
	ExternalID        int64   `json:"external_id"`
	OrderExternalID   int64   `json:"order_external_id"`
	ProductExternalID *int64  `json:"product_external_id,omitempty"`
	VariantExternalID *int64  `json:"variant_external_id,omitempty"`
	Title             string  `json:"title"`
	SKU               string  `json:"sku"`
	Quantity          int     `json:"quantity"`
	Price             float64 `json:"price"`
}

// MergeResult reports the outcome of one merge batch
type MergeResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
}

// Add accumulates another result into r
func (r *MergeResult) Add(other MergeResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Errors += other.Errors
}

// Rows is the number of rows that were merged successfully
func (r MergeResult) Rows() int {
	return r.Inserted + r.Updated
}
