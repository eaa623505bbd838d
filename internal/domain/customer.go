package domain

// RecipientColumn is the result column that carries the Messenger recipient
// identifier. Rows without it are skipped by the producer.
const RecipientColumn = "fb_id"

// CustomerRow is one row of the expiring-customer query. It is transient:
// it exists only for the duration of a single query-to-enqueue pass.
type CustomerRow struct {
	RecipientID string         `json:"fb_id"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// HasRecipient reports whether the row carries a usable recipient identifier.
func (c CustomerRow) HasRecipient() bool {
	return c.RecipientID != ""
}
