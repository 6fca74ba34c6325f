package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formwatch/dispatchkit/pkg/notification"
)

// PostgresStore persists delivery records in PostgreSQL via pgx.
// This is the production implementation of the Store interface; schema
// lives in migrations/00001_delivery_records.sql.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed record store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	return &PostgresStore{pool: pool}, nil
}

const recordColumns = `id, user_id, channel, severity, recipient, subject, body,
	related_change_id, status, retry_count, max_retries, error_message,
	response_data, delivery_time_ms, next_retry_at, sent_at, delivered_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record id is required", ErrInvalidRecord)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now())`,
		rec.ID, rec.UserID, string(rec.Channel), string(rec.Severity), rec.Recipient,
		rec.Subject, rec.Body, rec.RelatedChangeID, string(rec.Status), rec.RetryCount,
		rec.MaxRetries, rec.ErrorMessage, rec.ResponseData, rec.DeliveryTime.Milliseconds(),
		rec.NextRetryAt, rec.SentAt, rec.DeliveredAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return fmt.Errorf("%w: %s", ErrDuplicateRecord, rec.ID)
		}
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rec Record) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE delivery_records SET
			status = $2, retry_count = $3, error_message = $4, response_data = $5,
			delivery_time_ms = $6, next_retry_at = $7, delivered_at = $8, updated_at = now()
		WHERE id = $1`,
		rec.ID, string(rec.Status), rec.RetryCount, rec.ErrorMessage, rec.ResponseData,
		rec.DeliveryTime.Milliseconds(), rec.NextRetryAt, rec.DeliveredAt,
	)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, rec.ID)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM delivery_records WHERE id = $1`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	var (
		where []string
		args  []any
	)

	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		where = append(where, fmt.Sprintf("sent_at >= $%d", len(args)))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		where = append(where, fmt.Sprintf("sent_at < $%d", len(args)))
	}

	query := `SELECT ` + recordColumns + ` FROM delivery_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sent_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return out, nil
}

// scanRecord reads one row in recordColumns order.
func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec            Record
		channel        string
		severity       string
		status         string
		deliveryTimeMS int64
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &channel, &severity, &rec.Recipient, &rec.Subject, &rec.Body,
		&rec.RelatedChangeID, &status, &rec.RetryCount, &rec.MaxRetries, &rec.ErrorMessage,
		&rec.ResponseData, &deliveryTimeMS, &rec.NextRetryAt, &rec.SentAt, &rec.DeliveredAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Channel = notification.Channel(channel)
	rec.Severity = notification.Severity(severity)
	rec.Status = Status(status)
	rec.DeliveryTime = time.Duration(deliveryTimeMS) * time.Millisecond
	return &rec, nil
}
