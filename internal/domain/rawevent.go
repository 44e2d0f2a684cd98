package domain

import "time"

// Raw event sources
const (
	RawEventSourceWebhook = "webhook"
	RawEventSourceBulk    = "bulk"
)

// RawEvent is one incoming record (webhook delivery or bulk-export line)
// persisted before normalization. The log is append-only; only the
// processed flag is ever mutated after insert.
type RawEvent struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	ShopDomain string    `json:"shop_domain" bson:"shop_domain"`
	Topic      string    `json:"topic" bson:"topic"`
	Source     string    `json:"source" bson:"source"`
	Payload    []byte    `json:"payload" bson:"payload"`
	Processed  bool      `json:"processed" bson:"processed"`
	ReceivedAt time.Time `json:"received_at" bson:"received_at"`
}
