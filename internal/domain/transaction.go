package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxStatus is the settlement outcome of a transaction.
type TxStatus string

const (
	TxStatusSuccess TxStatus = "success"
	TxStatusFailed  TxStatus = "failed"
	TxStatusPending TxStatus = "pending"
)

// TransactionRecord is one immutable row of the analysed dataset.
// The core only ever reads these; the row source owns storage.
type TransactionRecord struct {
	ID              string          // from "transaction id"
	Timestamp       time.Time       // from "timestamp"
	TransactionType string          // from "transaction type" (P2P, P2M, Bill Payment, Recharge)
	Category        string          // from "merchant_category"
	Amount          decimal.Decimal // from "amount (INR)"
	Status          TxStatus        // from "transaction_status"
	AgeGroup        string          // from "sender_age_group"
	Region          string          // from "sender_state"
	Bank            string          // from "sender_bank"
	DeviceType      string          // from "device_type"
	NetworkType     string          // from "network_type"
	FraudFlag       bool            // from "fraud_flag"
	MerchantID      string          // from "merchant_id"
	Latitude        float64
	Longitude       float64
}

// Failed reports whether the transaction did not settle.
func (t TransactionRecord) Failed() bool {
	return t.Status == TxStatusFailed
}
