package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for room persistence operations.
type Repository interface {
	CreateRoom(ctx context.Context, room *Room) error
	ListRooms(ctx context.Context) ([]Room, error)
	GetRoom(ctx context.Context, id int) (*Room, error)
	UpdateRoomName(ctx context.Context, id int, name string) error
	AssignBeacon(ctx context.Context, id int, a BeaconAssignment) error
	DeleteRoom(ctx context.Context, id int) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed room repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const roomColumns = `id, name, vendor_uuid, major, minor, created_at, updated_at`

// CreateRoom inserts a new room. The vendor UUID is stored upper-case.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room *Room) error {
	if err := ValidateRoom(room); err != nil {
		return err
	}
	const query = `INSERT INTO rooms (id, name, vendor_uuid, major, minor) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		room.ID, strings.TrimSpace(room.Name),
		nullUUID(room.VendorUUID), nullUint16(room.Major), nullUint16(room.Minor))
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: %d", ErrRoomExists, room.ID)
		}
		return fmt.Errorf("inserting room %d: %w", room.ID, err)
	}
	return nil
}

// ListRooms returns all rooms ordered by id.
func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning room row: %w", err)
		}
		rooms = append(rooms, *rm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating room rows: %w", err)
	}
	return rooms, nil
}

// GetRoom returns a single room by ID.
func (r *SQLiteRepository) GetRoom(ctx context.Context, id int) (*Room, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	rm, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning room %d: %w", id, err)
	}
	return rm, nil
}

// UpdateRoomName renames a room.
func (r *SQLiteRepository) UpdateRoomName(ctx context.Context, id int, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	const query = `UPDATE rooms SET name = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	return r.execOne(ctx, id, query, strings.TrimSpace(name), id)
}

// AssignBeacon replaces the beacon identity of a room.
func (r *SQLiteRepository) AssignBeacon(ctx context.Context, id int, a BeaconAssignment) error {
	if err := ValidateBeacon(a); err != nil {
		return err
	}
	const query = `UPDATE rooms SET vendor_uuid = ?, major = ?, minor = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`
	return r.execOne(ctx, id, query,
		nullUUID(a.VendorUUID), nullUint16(a.Major), nullUint16(a.Minor), id)
}

// DeleteRoom removes a single room by ID.
func (r *SQLiteRepository) DeleteRoom(ctx context.Context, id int) error {
	return r.execOne(ctx, id, "DELETE FROM rooms WHERE id = ?", id)
}

// execOne runs a statement expected to touch exactly the room with id.
func (r *SQLiteRepository) execOne(ctx context.Context, id int, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("writing room %d: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (*Room, error) {
	var rm Room
	var vendorUUID sql.NullString
	var major, minor sql.NullInt64
	var createdAt, updatedAt string

	if err := s.Scan(&rm.ID, &rm.Name, &vendorUUID, &major, &minor, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if vendorUUID.Valid {
		rm.VendorUUID = &vendorUUID.String
	}
	rm.Major = uint16Ptr(major)
	rm.Minor = uint16Ptr(minor)
	rm.CreatedAt = parseTime(createdAt)
	rm.UpdatedAt = parseTime(updatedAt)
	return &rm, nil
}

// isConstraint reports whether err is a SQLite constraint violation.
func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func nullUUID(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.ToUpper(strings.TrimSpace(*s)), Valid: true}
}

func nullUint16(v *uint16) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func uint16Ptr(v sql.NullInt64) *uint16 {
	if !v.Valid {
		return nil
	}
	u := uint16(v.Int64) //nolint:gosec // Column CHECK constrains the range to 0..65535
	return &u
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
