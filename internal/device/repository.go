package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines device persistence operations.
// It allows the Registry to be tested without a database.
type Repository interface {
	// GetByIEEE returns ErrDeviceNotFound if no device has the address.
	GetByIEEE(ctx context.Context, ieee string) (*Device, error)

	List(ctx context.Context) ([]Device, error)

	// Upsert inserts a device or updates its descriptive fields.
	// Existing state is preserved.
	Upsert(ctx context.Context, device *Device) error

	// Delete returns ErrDeviceNotFound if no device has the address.
	Delete(ctx context.Context, ieee string) error

	// MergeState applies patch on top of the stored state and returns the result.
	MergeState(ctx context.Context, ieee string, patch State) (State, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDeviceColumns = `
	SELECT ieee_address, friendly_name, model_id, manufacturer, retain,
		state, state_updated_at, created_at, updated_at
	FROM devices`

// GetByIEEE retrieves a device by IEEE address.
func (r *SQLiteRepository) GetByIEEE(ctx context.Context, ieee string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectDeviceColumns+` WHERE ieee_address = ?`, ieee)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by ieee address: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by friendly name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDeviceColumns+` ORDER BY friendly_name`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Upsert inserts or updates a device. State columns are left untouched on update.
func (r *SQLiteRepository) Upsert(ctx context.Context, d *Device) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (ieee_address, friendly_name, model_id, manufacturer, retain, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '{}', ?, ?)
		ON CONFLICT (ieee_address) DO UPDATE SET
			friendly_name = excluded.friendly_name,
			model_id      = excluded.model_id,
			manufacturer  = excluded.manufacturer,
			retain        = excluded.retain,
			updated_at    = excluded.updated_at`,
		d.IEEEAddress,
		d.FriendlyName,
		d.ModelID,
		d.Manufacturer,
		boolToInt(d.Retain),
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if msg := err.Error(); strings.Contains(msg, "UNIQUE") && strings.Contains(msg, "friendly_name") {
			return fmt.Errorf("%w: %q", ErrNameConflict, d.FriendlyName)
		}
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// Delete removes a device by IEEE address.
func (r *SQLiteRepository) Delete(ctx context.Context, ieee string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE ieee_address = ?`, ieee)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// MergeState merges patch into the stored state using json_patch, so keys
// not present in patch are preserved.
func (r *SQLiteRepository) MergeState(ctx context.Context, ieee string, patch State) (State, error) {
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	var merged string
	err = r.db.QueryRowContext(ctx, `
		UPDATE devices
		SET state = json_patch(COALESCE(state, '{}'), ?),
		    state_updated_at = ?,
		    updated_at = ?
		WHERE ieee_address = ?
		RETURNING state`,
		string(patchJSON), now, now, ieee,
	).Scan(&merged)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("updating device state: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(merged), &state); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}
	return state, nil
}

// rowScanner is implemented by both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var retain int
	var stateJSON string
	var stateUpdatedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.IEEEAddress,
		&d.FriendlyName,
		&d.ModelID,
		&d.Manufacturer,
		&retain,
		&stateJSON,
		&stateUpdatedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Retain = retain != 0
	if stateJSON != "" {
		if err := json.Unmarshal([]byte(stateJSON), &d.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
	}
	if stateUpdatedAt.Valid {
		if t, err := time.Parse(time.RFC3339, stateUpdatedAt.String); err == nil {
			d.StateUpdatedAt = &t
		}
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
