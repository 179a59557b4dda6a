// Package ingest reads transaction datasets from CSV files, generates
// synthetic ones, and loads either into a row sink.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/txn-insights/internal/domain"
)

// Column names of the UPI transactions export.
const (
	ColID              = "transaction id"
	ColTimestamp       = "timestamp"
	ColTransactionType = "transaction type"
	ColCategory        = "merchant_category"
	ColAmount          = "amount (INR)"
	ColStatus          = "transaction_status"
	ColAgeGroup        = "sender_age_group"
	ColState           = "sender_state"
	ColBank            = "sender_bank"
	ColDevice          = "device_type"
	ColNetwork         = "network_type"
	ColFraudFlag       = "fraud_flag"
	ColMerchantID      = "merchant_id"
	ColLatitude        = "latitude"
	ColLongitude       = "longitude"
)

// Columns is the header WriteCSV emits, in order.
var Columns = []string{
	ColID, ColTimestamp, ColTransactionType, ColCategory, ColAmount, ColStatus,
	ColAgeGroup, ColState, ColBank, ColDevice, ColNetwork, ColFraudFlag,
	ColMerchantID, ColLatitude, ColLongitude,
}

// alternative header spellings seen in older exports
var columnAliases = map[string]string{
	"transaction_id":    ColID,
	"transaction_type":  ColTransactionType,
	"category":          ColCategory,
	"amount":            ColAmount,
	"amount_inr":        ColAmount,
	"status":            ColStatus,
	"age_group":         ColAgeGroup,
	"state":             ColState,
	"bank":              ColBank,
	"device":            ColDevice,
	"network":           ColNetwork,
	"is_fraud":          ColFraudFlag,
	"fraud":             ColFraudFlag,
	"merchant":          ColMerchantID,
	"lat":               ColLatitude,
	"lon":               ColLongitude,
	"lng":               ColLongitude,
	"transaction_state": ColState,
}

var requiredColumns = []string{ColTimestamp, ColAmount}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02-01-2006 15:04",
	"2006-01-02",
}

const timestampLayout = "2006-01-02 15:04:05"

// csvRow holds the raw, trimmed cells of one line.
type csvRow struct {
	ID              string `validate:"max=64"`
	Timestamp       string `validate:"required"`
	TransactionType string
	Category        string
	Amount          string `validate:"required,numeric"`
	Status          string `validate:"omitempty,oneof=success failed pending"`
	AgeGroup        string
	State           string
	Bank            string
	Device          string
	Network         string
	FraudFlag       string `validate:"omitempty,oneof=0 1 true false yes no"`
	MerchantID      string
	Latitude        string `validate:"omitempty,latitude"`
	Longitude       string `validate:"omitempty,longitude"`
}

// RowError describes a line that was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Batch is the outcome of reading a file: the rows that parsed and the
// lines that did not.
type Batch struct {
	Records []domain.TransactionRecord
	Skipped []RowError
}

var validate = validator.New()

// ReadCSV parses a transactions export. Header names are matched
// case-insensitively; unknown columns are ignored. Malformed lines are
// reported in Batch.Skipped rather than failing the whole file.
func ReadCSV(r io.Reader) (Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Batch{}, errors.New("ReadCSV: empty file")
		}
		return Batch{}, fmt.Errorf("ReadCSV: reading header: %w", err)
	}

	index := headerIndex(header)
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return Batch{}, fmt.Errorf("ReadCSV: missing required column %q", col)
		}
	}

	var batch Batch
	for line := 2; ; line++ {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				batch.Skipped = append(batch.Skipped, RowError{Line: line, Err: err})
				continue
			}
			return batch, fmt.Errorf("ReadCSV: reading line %d: %w", line, err)
		}

		row := rowFrom(cells, index)
		rec, err := row.record()
		if err != nil {
			batch.Skipped = append(batch.Skipped, RowError{Line: line, Err: err})
			continue
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("TXN%010d", line-1)
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeColumn(h)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return index
}

func normalizeColumn(h string) string {
	name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	for _, col := range Columns {
		if strings.ToLower(col) == name {
			return col
		}
	}
	if alias, ok := columnAliases[name]; ok {
		return alias
	}
	return name
}

func rowFrom(cells []string, index map[string]int) csvRow {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}
	return csvRow{
		ID:              get(ColID),
		Timestamp:       get(ColTimestamp),
		TransactionType: get(ColTransactionType),
		Category:        get(ColCategory),
		Amount:          strings.ReplaceAll(get(ColAmount), ",", ""),
		Status:          strings.ToLower(get(ColStatus)),
		AgeGroup:        get(ColAgeGroup),
		State:           get(ColState),
		Bank:            get(ColBank),
		Device:          get(ColDevice),
		Network:         get(ColNetwork),
		FraudFlag:       strings.ToLower(get(ColFraudFlag)),
		MerchantID:      get(ColMerchantID),
		Latitude:        get(ColLatitude),
		Longitude:       get(ColLongitude),
	}
}

func (row csvRow) record() (domain.TransactionRecord, error) {
	if err := validate.Struct(row); err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("invalid row: %w", err)
	}

	ts, err := parseTimestamp(row.Timestamp)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("parsing amount %q: %w", row.Amount, err)
	}
	if amount.IsNegative() {
		return domain.TransactionRecord{}, fmt.Errorf("negative amount %s", amount)
	}

	status := domain.TxStatus(row.Status)
	if status == "" {
		status = domain.TxStatusSuccess
	}

	rec := domain.TransactionRecord{
		ID:              row.ID,
		Timestamp:       ts,
		TransactionType: row.TransactionType,
		Category:        row.Category,
		Amount:          amount,
		Status:          status,
		AgeGroup:        row.AgeGroup,
		Region:          row.State,
		Bank:            row.Bank,
		DeviceType:      row.Device,
		NetworkType:     row.Network,
		FraudFlag:       row.FraudFlag == "1" || row.FraudFlag == "true" || row.FraudFlag == "yes",
		MerchantID:      row.MerchantID,
	}
	if row.Latitude != "" && row.Longitude != "" {
		// validated above
		rec.Latitude, _ = strconv.ParseFloat(row.Latitude, 64)
		rec.Longitude, _ = strconv.ParseFloat(row.Longitude, 64)
	}
	return rec, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// WriteCSV writes records with the Columns header.
func WriteCSV(w io.Writer, records []domain.TransactionRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("WriteCSV: writing header: %w", err)
	}

	for _, rec := range records {
		fraud := "0"
		if rec.FraudFlag {
			fraud = "1"
		}
		var lat, lon string
		if rec.Latitude != 0 || rec.Longitude != 0 {
			lat = strconv.FormatFloat(rec.Latitude, 'f', 6, 64)
			lon = strconv.FormatFloat(rec.Longitude, 'f', 6, 64)
		}

		if err := cw.Write([]string{
			rec.ID,
			rec.Timestamp.UTC().Format(timestampLayout),
			rec.TransactionType,
			rec.Category,
			rec.Amount.StringFixed(2),
			string(rec.Status),
			rec.AgeGroup,
			rec.Region,
			rec.Bank,
			rec.DeviceType,
			rec.NetworkType,
			fraud,
			rec.MerchantID,
			lat,
			lon,
		}); err != nil {
			return fmt.Errorf("WriteCSV: writing %s: %w", rec.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}
