package model

// TransferType is the direction of a bank transfer relative to the merchant account.
type TransferType string

const (
	TransferIn  TransferType = "in"
	TransferOut TransferType = "out"
)

// Transfer is a single bank-transfer notification delivered by the payment aggregator.
type Transfer struct {
	TransactionID   int64
	Content         string
	Amount          int64
	Type            TransferType
	Gateway         string
	AccountNumber   string
	ReferenceCode   string
	TransactionDate string
	Description     string
}
