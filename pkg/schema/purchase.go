package schema

import (
	"time"

	"github.com/hamba/avro/v2"
)

const PurchaseCompletedSchemaTextV1 = `{
	"type": "record",
	"namespace": "keyshop.purchases",
	"name": "purchase_completed",
	"fields": [
		{"name": "purchase_id", "type": "long"},
		{"name": "email", "type": "string"},
		{"name": "items", "type": {
			"type": "array",
			"items": {
				"type": "record",
				"name": "purchase_item",
				"fields": [
					{"name": "product_id", "type": "long"},
					{"name": "product_name", "type": "string"},
					{"name": "quantity", "type": "int"},
					{"name": "unit_price", "type": "long"}
				]
			}
		}},
		{"name": "total", "type": "long"},
		{"name": "delivery", "type": "string"},
		{"name": "created_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

type (
	// PurchaseCompletedV1 never carries activation key values.
	PurchaseCompletedV1 struct {
		PurchaseID int64            `avro:"purchase_id"`
		Email      string           `avro:"email"`
		Items      []PurchaseItemV1 `avro:"items"`
		Total      int64            `avro:"total"`
		Delivery   string           `avro:"delivery"`
		CreatedAt  time.Time        `avro:"created_at"`
	}

	PurchaseItemV1 struct {
		ProductID   int64  `avro:"product_id"`
		ProductName string `avro:"product_name"`
		Quantity    int    `avro:"quantity"`
		UnitPrice   int64  `avro:"unit_price"`
	}
)

// PurchaseCompletedV1Avro panics if the schema text is malformed.
func PurchaseCompletedV1Avro() avro.Schema {
	return avro.MustParse(PurchaseCompletedSchemaTextV1)
}
