package response

type Invoice struct {
	InvoiceID   string `json:"invoice_id"`
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	Status      string `json:"status"`
	Content     string `json:"content"`
	TotalAmount int64  `json:"total_amount"`
	IssuedAt    string `json:"issued_at"`
}

type Error struct {
	Error string `json:"error" example:"message"`
}
