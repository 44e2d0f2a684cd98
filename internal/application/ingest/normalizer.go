package ingest

import (
	"fmt"
	"strings"

	"shoppulse-ingest-layer/internal/domain"
)

// Normalizer maps raw platform records into canonical entity rows. It is
// pure: no I/O, no storage lookups. Foreign-key references are carried
// over as-is; the merge engine resolves them defensively at write time.
type Normalizer struct{}

// NewNormalizer creates a normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Customer maps a customer record from either source shape
func (n *Normalizer) Customer(rec Record) (domain.Customer, error) {
	id, err := rec.ExternalID()
	if err != nil {
		return domain.Customer{}, fmt.Errorf("customer: %w", err)
	}

	totalSpent := rec.Float("total_spent")
	if spent := rec.Child("amountSpent"); spent != nil {
		totalSpent = spent.Float("amount")
	}

	return domain.Customer{
		ExternalID:      id,
		Email:           rec.Str("email"),
		FirstName:       rec.Str("firstName", "first_name"),
		LastName:        rec.Str("lastName", "last_name"),
		Phone:           rec.Str("phone"),
		TotalSpent:      totalSpent,
		OrdersCount:     rec.Int("numberOfOrders", "orders_count"),
		State:           strings.ToLower(rec.Str("state")),
		SourceCreatedAt: rec.Time("createdAt", "created_at"),
		SourceUpdatedAt: rec.Time("updatedAt", "updated_at"),
	}, nil
}

// Product maps a product record from either source shape
func (n *Normalizer) Product(rec Record) (domain.Product, error) {
	id, err := rec.ExternalID()
	if err != nil {
		return domain.Product{}, fmt.Errorf("product: %w", err)
	}

	return domain.Product{
		ExternalID:      id,
		Title:           rec.Str("title"),
		Handle:          rec.Str("handle"),
		Vendor:          rec.Str("vendor"),
		ProductType:     rec.Str("productType", "product_type"),
		Tags:            rec.Tags("tags"),
		Status:          strings.ToLower(rec.Str("status")),
		SourceCreatedAt: rec.Time("createdAt", "created_at"),
		SourceUpdatedAt: rec.Time("updatedAt", "updated_at"),
	}, nil
}

// Variant maps a product-variant record. productID is the parent
// product's external id, resolved by the reconciler; webhook-shaped
// variants carry their own product_id instead.
func (n *Normalizer) Variant(rec Record, productID int64) (domain.ProductVariant, error) {
	id, err := rec.ExternalID()
	if err != nil {
		return domain.ProductVariant{}, fmt.Errorf("variant: %w", err)
	}

	if productID == 0 {
		if ref := rec.ChildID("product"); ref != nil {
			productID = *ref
		} else if pid := rec.Int("product_id"); pid != 0 {
			productID = int64(pid)
		}
	}

	return domain.ProductVariant{
		ExternalID:        id,
		ProductExternalID: productID,
		Title:             rec.Str("title"),
		SKU:               rec.Str("sku"),
		Price:             rec.Float("price"),
		InventoryQuantity: rec.Int("inventoryQuantity", "inventory_quantity"),
	}, nil
}

// Order maps an order record from either source shape. Guest orders
// yield a nil customer reference.
func (n *Normalizer) Order(rec Record) (domain.Order, error) {
	id, err := rec.ExternalID()
	if err != nil {
		return domain.Order{}, fmt.Errorf("order: %w", err)
	}

	email := rec.Str("email")
	customerRef := rec.ChildID("customer")
	if customer := rec.Child("customer"); customer != nil && email == "" {
		email = customer.Str("email")
	}

	orderNumber := rec.Str("orderNumber", "order_number")
	name := rec.Str("name")
	if orderNumber == "" && name != "" {
		orderNumber = strings.TrimPrefix(name, "#")
	}

	currency := rec.Str("currencyCode", "currency")
	if currency == "" {
		currency = "USD"
	}

	return domain.Order{
		ExternalID:         id,
		CustomerExternalID: customerRef,
		Email:              email,
		Name:               name,
		OrderNumber:        orderNumber,
		FinancialStatus:    strings.ToLower(rec.Str("displayFinancialStatus", "financial_status")),
		FulfillmentStatus:  strings.ToLower(rec.Str("displayFulfillmentStatus", "fulfillment_status")),
		Currency:           currency,
		SubtotalPrice:      rec.Money("subtotalPriceSet", "subtotal_price"),
		TotalDiscounts:     rec.Money("totalDiscountsSet", "total_discounts"),
		TotalTax:           rec.Money("totalTaxSet", "total_tax"),
		ShippingPrice:      rec.Money("totalShippingPriceSet", "shipping_price"),
		TotalPrice:         rec.Money("totalPriceSet", "total_price"),
		ProcessedAt:        rec.Time("processedAt", "processed_at"),
		SourceCreatedAt:    rec.Time("createdAt", "created_at"),
		SourceUpdatedAt:    rec.Time("updatedAt", "updated_at"),
	}, nil
}

// LineItem maps an order line item. orderID is the parent order's
// external id, resolved by the reconciler; webhook-shaped line items
// carry order_id instead. Product/variant references stay as the source
// reported them; a reference to a product unknown locally is nulled by
// the merge engine, not rejected.
func (n *Normalizer) LineItem(rec Record, orderID int64) (domain.OrderLineItem, error) {
	id, err := rec.ExternalID()
	if err != nil {
		return domain.OrderLineItem{}, fmt.Errorf("line item: %w", err)
	}

	if orderID == 0 {
		if oid := rec.Int("order_id"); oid != 0 {
			orderID = int64(oid)
		}
	}
	if orderID == 0 {
		return domain.OrderLineItem{}, fmt.Errorf("line item %d has no order reference", id)
	}

	productRef := rec.ChildID("product")
	if productRef == nil {
		if pid := rec.Int("product_id"); pid != 0 {
			v := int64(pid)
			productRef = &v
		}
	}
	variantRef := rec.ChildID("variant")
	if variantRef == nil {
		if vid := rec.Int("variant_id"); vid != 0 {
			v := int64(vid)
			variantRef = &v
		}
	}

	price := rec.Money("originalUnitPriceSet", "price")

	return domain.OrderLineItem{
		ExternalID:        id,
		OrderExternalID:   orderID,
		ProductExternalID: productRef,
		VariantExternalID: variantRef,
		Title:             rec.Str("title"),
		SKU:               rec.Str("sku"),
		Quantity:          rec.Int("quantity"),
		Price:             price,
	}, nil
}
