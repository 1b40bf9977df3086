// Package audit keeps a history of commands sent to the Zigbee network in
// the command_log table.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Result values stored in command_log.result.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// recordTimeout bounds a single insert made from the command path.
const recordTimeout = 2 * time.Second

// Entry is one completed command.
type Entry struct {
	ID         string    `json:"id"`
	Device     string    `json:"device"`
	Key        string    `json:"key"`
	Cluster    string    `json:"cluster"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter controls which entries to return.
type Filter struct {
	Device string // optional: friendly name or IEEE address as recorded
	Result string // optional: success or error
	Limit  int    // default 50, max 200
	Offset int    // pagination offset
}

// ListResult contains a page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines command log operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

// SQLiteRepository stores command log entries in SQLite.
type SQLiteRepository struct {
	db     *sql.DB
	logger Logger
}

// NewSQLiteRepository creates a new command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SetLogger sets the logger used when RecordCommand fails.
func (r *SQLiteRepository) SetLogger(logger Logger) {
	r.logger = logger
}

// Create inserts an entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "cmd-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, device, key, cluster, result, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Device, entry.Key, entry.Cluster, entry.Result,
		nullableString(entry.Error), entry.DurationMS,
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command log entry: %w", err)
	}
	return nil
}

// RecordCommand stores the outcome of one command. Failures are logged, not
// returned, so a full disk never blocks the command queue.
func (r *SQLiteRepository) RecordCommand(device, key, cluster string, duration time.Duration, err error) {
	entry := &Entry{
		Device:     device,
		Key:        key,
		Cluster:    cluster,
		Result:     ResultSuccess,
		DurationMS: duration.Milliseconds(),
	}
	if err != nil {
		entry.Result = ResultError
		entry.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if createErr := r.Create(ctx, entry); createErr != nil && r.logger != nil {
		r.logger.Warn("failed to record command", "device", device, "key", key, "error", createErr)
	}
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Device != "" {
		conditions = append(conditions, "device = ?")
		args = append(args, filter.Device)
	}
	if filter.Result != "" {
		conditions = append(conditions, "result = ?")
		args = append(args, filter.Result)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_log %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, device, key, cluster, result, error, duration_ms, created_at FROM command_log %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var errText sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.Device, &e.Key, &e.Cluster, &e.Result,
			&errText, &e.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log entry: %w", err)
		}
		if errText.Valid {
			e.Error = errText.String
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
