// Package store persists ERA uploads and their line items in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/eraload/internal/db"
	"github.com/gyeh/eraload/internal/model"
	"github.com/gyeh/eraload/internal/money"
	embedsql "github.com/gyeh/eraload/internal/sql"
)

var (
	// ErrNotFound is returned for an unknown upload id.
	ErrNotFound = errors.New("store: upload not found")
	// ErrNotPending is returned when a transition is attempted on an upload
	// that already left the pending state.
	ErrNotPending = errors.New("store: upload is not pending")
)

// Filter scopes list and reconciliation queries. Nil fields match everything.
type Filter struct {
	PracticeID *string
	Period     *model.Period
	Status     *model.UploadStatus
}

func (f Filter) args() []any {
	var month *string
	var year *int32
	if f.Period != nil {
		m := string(f.Period.Month)
		y := int32(f.Period.Year)
		month, year = &m, &y
	}
	return []any{f.PracticeID, month, year}
}

// Store is the pgx-backed upload repository.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New creates a Store on an existing pool.
func New(pool *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log.With().Str("component", "store").Logger()}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreatePending inserts u in the pending state together with the raw file
// content. u.ID must be set; UploadedAt and Status are filled in.
func (s *Store) CreatePending(ctx context.Context, u *model.EraUpload, content []byte) error {
	err := s.pool.QueryRow(ctx, embedsql.InsertUpload,
		u.ID, u.Filename, u.PracticeID, string(u.Month), int32(u.Year), u.ContentSHA256, content,
	).Scan(&u.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert upload %s: %w", u.ID, err)
	}
	u.Status = model.StatusPending
	return nil
}

// Finalize writes all line items and the processed totals in one
// transaction. The status change is conditional on the upload still being
// pending, so concurrent finalizers cannot both succeed.
func (s *Store) Finalize(ctx context.Context, id uuid.UUID, totals model.Totals, warnings []string, items []model.LineItem) (time.Time, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("begin finalize: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var processedAt time.Time
	err = tx.QueryRow(ctx, embedsql.FinalizeUpload,
		id,
		int32(totals.TotalClaims),
		int32(totals.MatchedClaims),
		int32(totals.UnmatchedClaims),
		totals.TotalBilledCents.Int64(),
		totals.TotalPaidCents.Int64(),
		totals.TotalAdjustmentCents.Int64(),
		nonNil(warnings),
	).Scan(&processedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, s.transitionError(ctx, id)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("update upload %s: %w", id, err)
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"era", "line_items"},
		model.LineItemColumns(),
		db.NewLineItemSource(items),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("copy line items: %w", err)
	}
	if int(n) != len(items) {
		return time.Time{}, fmt.Errorf("copy line items: wrote %d of %d", n, len(items))
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("commit finalize: %w", err)
	}
	s.log.Debug().Str("upload_id", id.String()).Int64("line_items", n).Msg("upload finalized")
	return processedAt, nil
}

// MarkParseErrors moves a pending upload to parse_errors. detail must not be
// empty.
func (s *Store) MarkParseErrors(ctx context.Context, id uuid.UUID, claims int, detail []string) (time.Time, error) {
	if len(detail) == 0 {
		return time.Time{}, fmt.Errorf("mark parse errors %s: empty error detail", id)
	}
	var processedAt time.Time
	err := s.pool.QueryRow(ctx, embedsql.MarkParseErrors, id, int32(claims), detail).Scan(&processedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, s.transitionError(ctx, id)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("mark parse errors %s: %w", id, err)
	}
	return processedAt, nil
}

func (s *Store) transitionError(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("upload %s: %w", id, ErrNotPending)
}

// Get returns one upload without its line items.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*model.EraUpload, error) {
	u, err := scanUpload(s.pool.QueryRow(ctx, embedsql.GetUpload, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get upload %s: %w", id, err)
	}
	return u, nil
}

// LoadPending returns a pending upload and its raw content for reprocessing.
func (s *Store) LoadPending(ctx context.Context, id uuid.UUID) (*model.EraUpload, []byte, error) {
	var content []byte
	u, err := scanUpload(s.pool.QueryRow(ctx, embedsql.LoadPending, id), &content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load upload %s: %w", id, err)
	}
	if u.Status != model.StatusPending {
		return nil, nil, fmt.Errorf("upload %s is %s: %w", id, u.Status, ErrNotPending)
	}
	return u, content, nil
}

// List returns uploads in scope, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]model.EraUpload, error) {
	var status *string
	if f.Status != nil {
		st := string(*f.Status)
		status = &st
	}
	rows, err := s.pool.Query(ctx, embedsql.ListUploads, append(f.args(), status)...)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	out := []model.EraUpload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// ListPending returns ids of uploads that have been pending for at least
// olderThan, oldest first.
func (s *Store) ListPending(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListPending, olderThan.Seconds())
	if err != nil {
		return nil, fmt.Errorf("list pending uploads: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("list pending uploads: %w", err)
	}
	return ids, nil
}

// FindDuplicates returns other uploads of identical content for the same
// practice and period.
func (s *Store) FindDuplicates(ctx context.Context, practiceID string, p model.Period, sha256 string, exclude uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, embedsql.FindDuplicates, practiceID, string(p.Month), int32(p.Year), sha256, exclude)
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}
	return ids, nil
}

// Delete removes an upload. Its line items go with it through the foreign
// key cascade.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, embedsql.DeleteUpload, id)
	if err != nil {
		return fmt.Errorf("delete upload %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	return nil
}

// LineItems returns an upload's items in decode order.
func (s *Store) LineItems(ctx context.Context, id uuid.UUID) ([]model.LineItem, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListLineItems, id)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	return collectLineItems(rows)
}

// PeriodLineItems returns the items of every processed upload in scope.
// Status in f is ignored.
func (s *Store) PeriodLineItems(ctx context.Context, f Filter) ([]model.LineItem, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListPeriodLineItems, f.args()...)
	if err != nil {
		return nil, fmt.Errorf("list period line items: %w", err)
	}
	return collectLineItems(rows)
}

func scanUpload(row pgx.Row, extra ...any) (*model.EraUpload, error) {
	var (
		u                        model.EraUpload
		month, status            string
		year                     int32
		claims, matched, unmatch int32
		billed, paid, adjusted   int64
	)
	dest := []any{
		&u.ID, &u.Filename, &u.PracticeID, &month, &year, &status,
		&claims, &matched, &unmatch,
		&billed, &paid, &adjusted,
		&u.ErrorDetail, &u.ContentSHA256, &u.UploadedAt, &u.ProcessedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	u.Month = model.Month(month)
	u.Year = int(year)
	u.Status = model.UploadStatus(status)
	u.TotalClaims = int(claims)
	u.MatchedClaims = int(matched)
	u.UnmatchedClaims = int(unmatch)
	u.TotalBilledCents = money.Cents(billed)
	u.TotalPaidCents = money.Cents(paid)
	u.TotalAdjustmentCents = money.Cents(adjusted)
	if len(u.ErrorDetail) == 0 {
		u.ErrorDetail = nil
	}
	return &u, nil
}

func collectLineItems(rows pgx.Rows) ([]model.LineItem, error) {
	defer rows.Close()
	out := []model.LineItem{}
	for rows.Next() {
		var (
			li                     model.LineItem
			seq                    int32
			program, status        string
			billed, paid, adjusted int64
			expected, variance     *int64
		)
		err := rows.Scan(
			&li.ID, &li.UploadID, &seq, &li.ClaimID, &li.PatientName, &li.CPTCode, &li.Modifiers,
			&program, &billed, &paid, &adjusted, &li.AdjustmentReason,
			&li.ServiceDate, &expected, &variance, &li.PatientMatched,
			&status, &li.Warnings,
		)
		if err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		li.Seq = int(seq)
		li.ProgramType = model.ProgramType(program)
		li.BilledCents = money.Cents(billed)
		li.PaidCents = money.Cents(paid)
		li.AdjustmentCents = money.Cents(adjusted)
		li.SystemRevenueCents = money.FromNullable(expected)
		li.VarianceCents = money.FromNullable(variance)
		li.MatchStatus = model.MatchStatus(status)
		if len(li.Modifiers) == 0 {
			li.Modifiers = nil
		}
		if len(li.Warnings) == 0 {
			li.Warnings = nil
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
