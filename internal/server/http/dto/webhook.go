package dto

// WebhookRequest mirrors the bank-transfer notification sent by SePay.
type WebhookRequest struct {
	ID              int64   `json:"id" binding:"required,gt=0"`
	Gateway         string  `json:"gateway"`
	TransactionDate string  `json:"transactionDate"`
	AccountNumber   string  `json:"accountNumber"`
	Code            *string `json:"code"`
	Content         string  `json:"content"`
	TransferType    string  `json:"transferType" binding:"required,oneof=in out"`
	TransferAmount  int64   `json:"transferAmount" binding:"gte=0"`
	Accumulated     int64   `json:"accumulated"`
	SubAccount      *string `json:"subAccount"`
	ReferenceCode   string  `json:"referenceCode"`
	Description     string  `json:"description"`
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *WebhookData `json:"data,omitempty"`
}

// WebhookData carries the matched order, if any.
type WebhookData struct {
	Outcome string `json:"outcome"`
	OrderID string `json:"orderId,omitempty"`
	Status  string `json:"status,omitempty"`
}
