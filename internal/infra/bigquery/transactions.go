package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/txn-insights/internal/domain"
)

// amountScale is the NUMERIC scale used when converting amounts.
const amountScale = 9

// TransactionRow is one row of the transactions table.
type TransactionRow struct {
	TransactionID   string               `bigquery:"transaction_id"`   // REQUIRED
	Timestamp       time.Time            `bigquery:"timestamp"`        // REQUIRED
	TransactionType string               `bigquery:"transaction_type"` // REQUIRED
	MerchantCat     string               `bigquery:"merchant_category"`
	Amount          *big.Rat             `bigquery:"amount"` // REQUIRED NUMERIC
	Status          string               `bigquery:"transaction_status"`
	SenderAgeGroup  string               `bigquery:"sender_age_group"`
	SenderState     string               `bigquery:"sender_state"`
	SenderBank      bigquery.NullString  `bigquery:"sender_bank"`
	DeviceType      string               `bigquery:"device_type"`
	NetworkType     string               `bigquery:"network_type"`
	FraudFlag       bool                 `bigquery:"fraud_flag"`
	MerchantID      bigquery.NullString  `bigquery:"merchant_id"`
	Latitude        bigquery.NullFloat64 `bigquery:"latitude"`
	Longitude       bigquery.NullFloat64 `bigquery:"longitude"`
}

// ToRecord converts a table row into the domain model.
func (r *TransactionRow) ToRecord() domain.TransactionRecord {
	rec := domain.TransactionRecord{
		ID:              r.TransactionID,
		Timestamp:       r.Timestamp,
		TransactionType: r.TransactionType,
		Category:        r.MerchantCat,
		Status:          domain.TxStatus(r.Status),
		AgeGroup:        r.SenderAgeGroup,
		Region:          r.SenderState,
		Bank:            r.SenderBank.StringVal,
		DeviceType:      r.DeviceType,
		NetworkType:     r.NetworkType,
		FraudFlag:       r.FraudFlag,
		MerchantID:      r.MerchantID.StringVal,
		Latitude:        r.Latitude.Float64,
		Longitude:       r.Longitude.Float64,
	}
	if r.Amount != nil {
		rec.Amount = decimal.NewFromBigRat(r.Amount, amountScale)
	}
	return rec
}

// FromRecord converts a domain record into a table row.
func FromRecord(rec domain.TransactionRecord) *TransactionRow {
	return &TransactionRow{
		TransactionID:   rec.ID,
		Timestamp:       rec.Timestamp,
		TransactionType: rec.TransactionType,
		MerchantCat:     rec.Category,
		Amount:          rec.Amount.Rat(),
		Status:          string(rec.Status),
		SenderAgeGroup:  rec.AgeGroup,
		SenderState:     rec.Region,
		SenderBank:      nullString(rec.Bank),
		DeviceType:      rec.DeviceType,
		NetworkType:     rec.NetworkType,
		FraudFlag:       rec.FraudFlag,
		MerchantID:      nullString(rec.MerchantID),
		Latitude:        bigquery.NullFloat64{Float64: rec.Latitude, Valid: rec.Latitude != 0 || rec.Longitude != 0},
		Longitude:       bigquery.NullFloat64{Float64: rec.Longitude, Valid: rec.Latitude != 0 || rec.Longitude != 0},
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
