package bigquery

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/txn-insights/internal/domain"
	"github.com/dvloznov/txn-insights/internal/rowsource"
)

const (
	// DefaultTable is the transactions table name inside the dataset.
	DefaultTable = "transactions"
	// insertBatch bounds the rows sent in one streaming insert.
	insertBatch = 500
)

// TransactionStore reads and writes the transactions table. It holds a
// shared BigQuery client to avoid a connection per call.
type TransactionStore struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	table     string
}

// NewTransactionStore creates a store with its own client.
func NewTransactionStore(ctx context.Context, projectID, datasetID, table string) (*TransactionStore, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionStore: creating client: %w", err)
	}
	return NewTransactionStoreWithClient(client, projectID, datasetID, table), nil
}

// NewTransactionStoreWithClient wraps an existing client.
func NewTransactionStoreWithClient(client *bigquery.Client, projectID, datasetID, table string) *TransactionStore {
	if table == "" {
		table = DefaultTable
	}
	return &TransactionStore{client: client, projectID: projectID, datasetID: datasetID, table: table}
}

// Close closes the BigQuery client connection.
func (s *TransactionStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Fetch implements rowsource.Source. Equality, time and hour filters are
// pushed into the WHERE clause.
func (s *TransactionStore) Fetch(ctx context.Context, filter domain.RowFilter) iter.Seq2[domain.TransactionRecord, error] {
	return func(yield func(domain.TransactionRecord, error) bool) {
		sql, params := BuildSelect(s.qualifiedTable(), filter)
		q := s.client.Query(sql)
		q.Parameters = params

		it, err := q.Read(ctx)
		if err != nil {
			yield(domain.TransactionRecord{}, fmt.Errorf("Fetch: query read: %w", err))
			return
		}

		for {
			var r TransactionRow
			err := it.Next(&r)
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(domain.TransactionRecord{}, fmt.Errorf("Fetch: iter next: %w", err))
				return
			}
			if !yield(r.ToRecord(), nil) {
				return
			}
		}
	}
}

// Write implements rowsource.Sink using streaming inserts.
func (s *TransactionStore) Write(ctx context.Context, records []domain.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	inserter := s.client.DatasetInProject(s.projectID, s.datasetID).Table(s.table).Inserter()
	for start := 0; start < len(records); start += insertBatch {
		end := min(start+insertBatch, len(records))
		rows := make([]*TransactionRow, 0, end-start)
		for _, rec := range records[start:end] {
			rows = append(rows, FromRecord(rec))
		}
		if err := inserter.Put(ctx, rows); err != nil {
			return fmt.Errorf("Write: inserting rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// CreateTable creates the transactions table from the row schema.
// An existing table is left untouched.
func (s *TransactionStore) CreateTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("CreateTable: inferring schema: %w", err)
	}

	table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(s.table)
	if _, err := table.Metadata(ctx); err == nil {
		return nil
	}

	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "timestamp",
		},
		Clustering: &bigquery.Clustering{Fields: []string{"sender_state", "merchant_category"}},
	}
	if err := table.Create(ctx, meta); err != nil {
		return fmt.Errorf("CreateTable: creating %s: %w", s.table, err)
	}
	return nil
}

func (s *TransactionStore) qualifiedTable() string {
	return fmt.Sprintf("`%s.%s.%s`", s.projectID, s.datasetID, s.table)
}

// BuildSelect renders the parameterised query for a filter.
func BuildSelect(table string, filter domain.RowFilter) (string, []bigquery.QueryParameter) {
	var (
		where  []string
		params []bigquery.QueryParameter
	)
	eq := func(column, name, value string) {
		if value == "" {
			return
		}
		where = append(where, fmt.Sprintf("LOWER(%s) = LOWER(@%s)", column, name))
		params = append(params, bigquery.QueryParameter{Name: name, Value: value})
	}

	eq("merchant_category", "category", filter.Category)
	eq("device_type", "device_type", filter.DeviceType)
	eq("network_type", "network_type", filter.NetworkType)
	eq("sender_state", "region", filter.Region)
	eq("sender_age_group", "age_group", filter.AgeGroup)

	if !filter.From.IsZero() {
		where = append(where, "timestamp >= @from_ts")
		params = append(params, bigquery.QueryParameter{Name: "from_ts", Value: filter.From})
	}
	if !filter.To.IsZero() {
		where = append(where, "timestamp < @to_ts")
		params = append(params, bigquery.QueryParameter{Name: "to_ts", Value: filter.To})
	}
	if h := filter.Hours; h != nil {
		op := "AND"
		if h.From > h.To {
			op = "OR"
		}
		where = append(where, fmt.Sprintf("(EXTRACT(HOUR FROM timestamp) >= @from_hour %s EXTRACT(HOUR FROM timestamp) < @to_hour)", op))
		params = append(params,
			bigquery.QueryParameter{Name: "from_hour", Value: h.From},
			bigquery.QueryParameter{Name: "to_hour", Value: h.To},
		)
	}

	var b strings.Builder
	b.WriteString(`SELECT
			transaction_id, timestamp, transaction_type, merchant_category, amount,
			transaction_status, sender_age_group, sender_state, sender_bank,
			device_type, network_type, fraud_flag, merchant_id, latitude, longitude
		FROM `)
	b.WriteString(table)
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(where, "\n\t\t  AND "))
	}
	return b.String(), params
}

// Ensure TransactionStore implements the row source interfaces.
var (
	_ rowsource.Source = (*TransactionStore)(nil)
	_ rowsource.Sink   = (*TransactionStore)(nil)
)
