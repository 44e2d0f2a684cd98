package shopify

import "shoppulse-ingest-layer/internal/domain"

// Per-stage bulk export queries. Child connections (variants, line
// items) are flattened into the JSONL stream by Shopify; each child row
// carries a __parentId back-reference.
const (
	customersQuery = `{
  customers {
    edges {
      node {
        id
        email
        firstName
        lastName
        phone
        state
        numberOfOrders
        amountSpent {
          amount
          currencyCode
        }
        createdAt
        updatedAt
      }
    }
  }
}`

	productsQuery = `{
  products {
    edges {
      node {
        id
        title
        handle
        vendor
        productType
        tags
        status
        createdAt
        updatedAt
        variants {
          edges {
            node {
              id
              title
              sku
              price
              inventoryQuantity
            }
          }
        }
      }
    }
  }
}`

	ordersQuery = `{
  orders {
    edges {
      node {
        id
        name
        email
        displayFinancialStatus
        displayFulfillmentStatus
        currencyCode
        subtotalPriceSet { shopMoney { amount } }
        totalDiscountsSet { shopMoney { amount } }
        totalTaxSet { shopMoney { amount } }
        totalShippingPriceSet { shopMoney { amount } }
        totalPriceSet { shopMoney { amount } }
        processedAt
        createdAt
        updatedAt
        customer {
          id
          email
        }
      }
    }
  }
}`

	lineItemsQuery = `{
  orders {
    edges {
      node {
        id
        lineItems {
          edges {
            node {
              id
              title
              sku
              quantity
              originalUnitPriceSet { shopMoney { amount } }
              product {
                id
              }
              variant {
                id
              }
            }
          }
        }
      }
    }
  }
}`
)

// StageQuery returns the bulk export query for a sync stage, or "" for
// an unknown stage.
func StageQuery(stage domain.Stage) string {
	switch stage {
	case domain.StageCustomers:
		return customersQuery
	case domain.StageProducts:
		return productsQuery
	case domain.StageOrders:
		return ordersQuery
	case domain.StageLineItems:
		return lineItemsQuery
	default:
		return ""
	}
}
