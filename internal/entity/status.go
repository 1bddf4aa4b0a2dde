package entity

// Status is the lifecycle marker of an outbox row.
type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Processed  Status = "processed"
	Failed     Status = "failed"
)

// InvoiceStatus is the lifecycle marker of an invoice. The creation pipeline
// defines no update path, so Created is currently the only value.
type InvoiceStatus string

const (
	InvoiceCreated InvoiceStatus = "created"
)
