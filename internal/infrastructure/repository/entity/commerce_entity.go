package entity

import (
	"time"

	"shoppulse-ingest-layer/internal/domain"
)

// MongoDB documents for the mirrored commerce entities. Every document
// carries the owning shop id alongside the platform's external id; the
// pair is the upsert key.

// MongoCustomerDoc represents a customer in MongoDB
type MongoCustomerDoc struct {
	ShopID          string     `bson:"shop_id"`
	ExternalID      int64      `bson:"external_id"`
	Email           string     `bson:"email"`
	FirstName       string     `bson:"first_name"`
	LastName        string     `bson:"last_name"`
	Phone           string     `bson:"phone"`
	TotalSpent      float64    `bson:"total_spent"`
	OrdersCount     int        `bson:"orders_count"`
	State           string     `bson:"state"`
	SourceCreatedAt *time.Time `bson:"source_created_at,omitempty"`
	SourceUpdatedAt *time.Time `bson:"source_updated_at,omitempty"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

// MongoCustomerDocFromDomain converts a domain entity to a MongoDB document
func MongoCustomerDocFromDomain(shopID string, c domain.Customer) *MongoCustomerDoc {
	return &MongoCustomerDoc{
		ShopID:          shopID,
		ExternalID:      c.ExternalID,
		Email:           c.Email,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		Phone:           c.Phone,
		TotalSpent:      c.TotalSpent,
		OrdersCount:     c.OrdersCount,
		State:           c.State,
		SourceCreatedAt: c.SourceCreatedAt,
		SourceUpdatedAt: c.SourceUpdatedAt,
	}
}

// MongoProductDoc represents a product in MongoDB
type MongoProductDoc struct {
	ShopID          string     `bson:"shop_id"`
	ExternalID      int64      `bson:"external_id"`
	Title           string     `bson:"title"`
	Handle          string     `bson:"handle"`
	Vendor          string     `bson:"vendor"`
	ProductType     string     `bson:"product_type"`
	Tags            string     `bson:"tags"`
	Status          string     `bson:"status"`
	SourceCreatedAt *time.Time `bson:"source_created_at,omitempty"`
	SourceUpdatedAt *time.Time `bson:"source_updated_at,omitempty"`
	UpdatedAt       time.Time  `bson:"updated_at"`
}

// MongoProductDocFromDomain converts a domain entity to a MongoDB document
func MongoProductDocFromDomain(shopID string, p domain.Product) *MongoProductDoc {
	return &MongoProductDoc{
		ShopID:          shopID,
		ExternalID:      p.ExternalID,
		Title:           p.Title,
		Handle:          p.Handle,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Tags:            p.Tags,
		Status:          p.Status,
		SourceCreatedAt: p.SourceCreatedAt,
		SourceUpdatedAt: p.SourceUpdatedAt,
	}
}

// MongoVariantDoc represents a product variant in MongoDB
type MongoVariantDoc struct {
	ShopID            string    `bson:"shop_id"`
	ExternalID        int64     `bson:"external_id"`
	ProductExternalID int64     `bson:"product_external_id"`
	Title             string    `bson:"title"`
	SKU               string    `bson:"sku"`
	Price             float64   `bson:"price"`
	InventoryQuantity int       `bson:"inventory_quantity"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

// MongoVariantDocFromDomain converts a domain entity to a MongoDB document
func MongoVariantDocFromDomain(shopID string, v domain.ProductVariant) *MongoVariantDoc {
	return &MongoVariantDoc{
		ShopID:            shopID,
		ExternalID:        v.ExternalID,
		ProductExternalID: v.ProductExternalID,
		Title:             v.Title,
		SKU:               v.SKU,
		Price:             v.Price,
		InventoryQuantity: v.InventoryQuantity,
	}
}

// MongoOrderDoc represents an order in MongoDB
type MongoOrderDoc struct {
	ShopID             string     `bson:"shop_id"`
	ExternalID         int64      `bson:"external_id"`
	CustomerExternalID *int64     `bson:"customer_external_id"`
	Email              string     `bson:"email"`
	Name               string     `bson:"name"`
	OrderNumber        string     `bson:"order_number"`
	FinancialStatus    string     `bson:"financial_status"`
	FulfillmentStatus  string     `bson:"fulfillment_status"`
	Currency           string     `bson:"currency"`
	SubtotalPrice      float64    `bson:"subtotal_price"`
	TotalDiscounts     float64    `bson:"total_discounts"`
	TotalTax           float64    `bson:"total_tax"`
	ShippingPrice      float64    `bson:"shipping_price"`
	TotalPrice         float64    `bson:"total_price"`
	ProcessedAt        *time.Time `bson:"processed_at,omitempty"`
	SourceCreatedAt    *time.Time `bson:"source_created_at,omitempty"`
	SourceUpdatedAt    *time.Time `bson:"source_updated_at,omitempty"`
	UpdatedAt          time.Time  `bson:"updated_at"`
}

// MongoOrderDocFromDomain converts a domain entity to a MongoDB document
func MongoOrderDocFromDomain(shopID string, o domain.Order) *MongoOrderDoc {
	return &MongoOrderDoc{
		ShopID:             shopID,
		ExternalID:         o.ExternalID,
		CustomerExternalID: o.CustomerExternalID,
		Email:              o.Email,
		Name:               o.Name,
		OrderNumber:        o.OrderNumber,
		FinancialStatus:    o.FinancialStatus,
		FulfillmentStatus:  o.FulfillmentStatus,
		Currency:           o.Currency,
		SubtotalPrice:      o.SubtotalPrice,
		TotalDiscounts:     o.TotalDiscounts,
		TotalTax:           o.TotalTax,
		ShippingPrice:      o.ShippingPrice,
		TotalPrice:         o.TotalPrice,
		ProcessedAt:        o.ProcessedAt,
		SourceCreatedAt:    o.SourceCreatedAt,
		SourceUpdatedAt:    o.SourceUpdatedAt,
	}
}

// MongoLineItemDoc represents an order line item in MongoDB
type MongoLineItemDoc struct {
	ShopID            string    `bson:"shop_id"`
	ExternalID        int64     `bson:"external_id"`
	OrderExternalID   int64     `bson:"order_external_id"`
	ProductExternalID *int64    `bson:"product_external_id"`
	VariantExternalID *int64    `bson:"variant_external_id"`
	Title             string    `bson:"title"`
	SKU               string    `bson:"sku"`
	Quantity          int       `bson:"quantity"`
	Price             float64   `bson:"price"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

// MongoLineItemDocFromDomain converts a domain entity to a MongoDB document
func MongoLineItemDocFromDomain(shopID string, li domain.OrderLineItem) *MongoLineItemDoc {
	return &MongoLineItemDoc{
		ShopID:            shopID,
		ExternalID:        li.ExternalID,
		OrderExternalID:   li.OrderExternalID,
		ProductExternalID: li.ProductExternalID,
		VariantExternalID: li.VariantExternalID,
		Title:             li.Title,
		SKU:               li.SKU,
		Quantity:          li.Quantity,
		Price:             li.Price,
	}
}
