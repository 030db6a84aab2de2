package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// SnapshotRow is one saved world stream.
type SnapshotRow struct {
	ID        int64
	World     string
	Frame     uint64
	Objects   int
	Version   uint32
	Data      []byte
	Checksum  []byte
	CreatedAt time.Time
}

// Checksum returns the BLAKE2b-256 digest stored with a snapshot.
func Checksum(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// Verify checks the row's data against its stored checksum.
func (row *SnapshotRow) Verify() error {
	if !bytes.Equal(Checksum(row.Data), row.Checksum) {
		return fmt.Errorf("%w: snapshot %d of %s", ErrChecksumMismatch, row.ID, row.World)
	}
	return nil
}

type SnapshotRepo struct {
	db   *DB
	keep int
}

// NewSnapshotRepo keeps the newest keep snapshots per world; keep <= 0 keeps all.
func NewSnapshotRepo(db *DB, keep int) *SnapshotRepo {
	return &SnapshotRepo{db: db, keep: keep}
}

// Save stores row and prunes older snapshots of the same world in one
// transaction. The checksum is computed here.
func (r *SnapshotRepo) Save(ctx context.Context, row *SnapshotRow) error {
	row.Checksum = Checksum(row.Data)

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO world_snapshots (world, frame, objects, version, data, checksum)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		row.World, int64(row.Frame), row.Objects, int32(row.Version), row.Data, row.Checksum,
	).Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return fmt.Errorf("snapshot insert: %w", err)
	}

	if r.keep > 0 {
		tag, err := tx.Exec(ctx,
			`DELETE FROM world_snapshots
			 WHERE world = $1 AND id NOT IN (
			     SELECT id FROM world_snapshots WHERE world = $1 ORDER BY id DESC LIMIT $2
			 )`, row.World, r.keep,
		)
		if err != nil {
			return fmt.Errorf("snapshot prune: %w", err)
		}
		if n := tag.RowsAffected(); n > 0 {
			r.db.log.Debug("pruned world snapshots", zap.String("world", row.World), zap.Int64("count", n))
		}
	}

	return tx.Commit(ctx)
}

// Latest returns the newest snapshot of world, or nil if there is none.
// A row whose data does not match its checksum fails with ErrChecksumMismatch.
func (r *SnapshotRepo) Latest(ctx context.Context, world string) (*SnapshotRow, error) {
	row := &SnapshotRow{}
	var frame int64
	var version int32
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, world, frame, objects, version, data, checksum, created_at
		 FROM world_snapshots WHERE world = $1 ORDER BY id DESC LIMIT 1`, world,
	).Scan(&row.ID, &row.World, &frame, &row.Objects, &version, &row.Data, &row.Checksum, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.Frame = uint64(frame)
	row.Version = uint32(version)
	if err := row.Verify(); err != nil {
		return nil, err
	}
	return row, nil
}

// List returns snapshot metadata for world, newest first, without the data.
func (r *SnapshotRepo) List(ctx context.Context, world string, limit int) ([]SnapshotRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, world, frame, objects, version, checksum, created_at
		 FROM world_snapshots WHERE world = $1 ORDER BY id DESC LIMIT $2`, world, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		var frame int64
		var version int32
		if err := rows.Scan(&s.ID, &s.World, &frame, &s.Objects, &version, &s.Checksum, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Frame = uint64(frame)
		s.Version = uint32(version)
		result = append(result, s)
	}
	return result, rows.Err()
}
