package postgres

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/txn-insights/internal/domain"
	"github.com/dvloznov/txn-insights/internal/rowsource"
)

const selectColumns = `transaction_id, ts, transaction_type, merchant_category, amount::text,
		transaction_status, sender_age_group, sender_state, sender_bank,
		device_type, network_type, fraud_flag, merchant_id, latitude, longitude`

const insertSQL = `INSERT INTO transactions (
		transaction_id, ts, transaction_type, merchant_category, amount,
		transaction_status, sender_age_group, sender_state, sender_bank,
		device_type, network_type, fraud_flag, merchant_id, latitude, longitude
	) VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (transaction_id) DO NOTHING`

// TransactionRepository reads and writes the transactions table.
type TransactionRepository struct {
	db *pgxpool.Pool
}

// NewTransactionRepository wraps a pool.
func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Fetch implements rowsource.Source.
func (r *TransactionRepository) Fetch(ctx context.Context, filter domain.RowFilter) iter.Seq2[domain.TransactionRecord, error] {
	return func(yield func(domain.TransactionRecord, error) bool) {
		sql, args := BuildSelect(filter)

		rows, err := r.db.Query(ctx, sql, args...)
		if err != nil {
			yield(domain.TransactionRecord{}, fmt.Errorf("Fetch: query: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(domain.TransactionRecord{}, fmt.Errorf("Fetch: scan: %w", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.TransactionRecord{}, fmt.Errorf("Fetch: rows: %w", err))
		}
	}
}

// Write implements rowsource.Sink. Rows whose ID already exists are skipped.
func (r *TransactionRepository) Write(ctx context.Context, records []domain.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}

	br := r.db.SendBatch(ctx, insertBatch(records))
	defer br.Close()

	for i := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("Write: inserting row %d (%s): %w", i, records[i].ID, err)
		}
	}
	return nil
}

// Replace implements rowsource.Replacer inside one transaction.
func (r *TransactionRepository) Replace(ctx context.Context, records []domain.TransactionRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("Replace: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM transactions"); err != nil {
		return fmt.Errorf("Replace: clearing table: %w", err)
	}

	if err := tx.SendBatch(ctx, insertBatch(records)).Close(); err != nil {
		return fmt.Errorf("Replace: inserting rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("Replace: commit: %w", err)
	}
	return nil
}

// BuildSelect renders the positional query for a filter.
func BuildSelect(filter domain.RowFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.Category != "" {
		add("LOWER(merchant_category) = LOWER($%d)", filter.Category)
	}
	if filter.DeviceType != "" {
		add("LOWER(device_type) = LOWER($%d)", filter.DeviceType)
	}
	if filter.NetworkType != "" {
		add("LOWER(network_type) = LOWER($%d)", filter.NetworkType)
	}
	if filter.Region != "" {
		add("LOWER(sender_state) = LOWER($%d)", filter.Region)
	}
	if filter.AgeGroup != "" {
		add("sender_age_group = $%d", filter.AgeGroup)
	}
	if !filter.From.IsZero() {
		add("ts >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("ts < $%d", filter.To)
	}

	sql := "SELECT " + selectColumns + "\n\tFROM transactions"
	if len(where) > 0 {
		sql += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	return sql, args
}

func insertBatch(records []domain.TransactionRecord) *pgx.Batch {
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertSQL,
			rec.ID, rec.Timestamp, rec.TransactionType, rec.Category, rec.Amount.String(),
			string(rec.Status), rec.AgeGroup, rec.Region, rec.Bank,
			rec.DeviceType, rec.NetworkType, rec.FraudFlag, rec.MerchantID, rec.Latitude, rec.Longitude,
		)
	}
	return batch
}

func scanRecord(row pgx.Row) (domain.TransactionRecord, error) {
	var (
		rec    domain.TransactionRecord
		amount string
		status string
	)
	err := row.Scan(
		&rec.ID, &rec.Timestamp, &rec.TransactionType, &rec.Category, &amount,
		&status, &rec.AgeGroup, &rec.Region, &rec.Bank,
		&rec.DeviceType, &rec.NetworkType, &rec.FraudFlag, &rec.MerchantID, &rec.Latitude, &rec.Longitude,
	)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	rec.Status = domain.TxStatus(status)
	rec.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	return rec, nil
}

// Ensure TransactionRepository implements the row source interfaces.
var (
	_ rowsource.Source   = (*TransactionRepository)(nil)
	_ rowsource.Sink     = (*TransactionRepository)(nil)
	_ rowsource.Replacer = (*TransactionRepository)(nil)
)
