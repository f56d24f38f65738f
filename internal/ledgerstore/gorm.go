package ledgerstore

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SnapshotRow is the insert-only table backing the gorm store. Rows are never
// updated or deleted.
type SnapshotRow struct {
	Seq       int64          `gorm:"primaryKey;column:seq"`
	Kind      string         `gorm:"not null;index;index:ix_entity_snapshots_kind_entity,priority:1"`
	EntityID  string         `gorm:"not null;index:ix_entity_snapshots_kind_entity,priority:2"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SnapshotRow) TableName() string { return "entity_snapshots" }

// GormStore persists snapshots in a relational insert-only log. It is the
// durable source of truth; the snowflake seq doubles as the global log order.
type GormStore struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewGormStore(db *gorm.DB, genID *snowflake.Node) *GormStore {
	return &GormStore{db: db, genID: genID}
}

func (s *GormStore) Append(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]SnapshotRow, 0, len(records))
	now := time.Now().UTC()
	for _, r := range records {
		rows = append(rows, SnapshotRow{
			Seq:       s.genID.Generate().Int64(),
			Kind:      string(r.Kind),
			EntityID:  r.EntityID,
			Payload:   datatypes.JSON(r.Payload),
			CreatedAt: now,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Exec(
				`INSERT INTO entity_snapshots (seq, kind, entity_id, payload, created_at)
				 VALUES (?, ?, ?, ?, ?)`,
				row.Seq,
				row.Kind,
				row.EntityID,
				row.Payload,
				row.CreatedAt,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) Latest(ctx context.Context, kind Kind) ([]Snapshot, error) {
	var rows []SnapshotRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT seq, kind, entity_id, payload, created_at
		 FROM entity_snapshots
		 WHERE seq IN (
			SELECT MAX(seq) FROM entity_snapshots WHERE kind = ? GROUP BY entity_id
		 )
		 ORDER BY seq`,
		string(kind),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSnapshots(rows), nil
}

func (s *GormStore) Get(ctx context.Context, kind Kind, entityID string) (*Snapshot, error) {
	var rows []SnapshotRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT seq, kind, entity_id, payload, created_at
		 FROM entity_snapshots
		 WHERE kind = ? AND entity_id = ?
		 ORDER BY seq DESC
		 LIMIT 1`,
		string(kind),
		entityID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	snap := toSnapshot(rows[0])
	return &snap, nil
}

func (s *GormStore) History(ctx context.Context, kind Kind, limit int) ([]Snapshot, error) {
	stmt := s.db.WithContext(ctx).
		Model(&SnapshotRow{}).
		Where("kind = ?", string(kind)).
		Order("seq desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	var rows []SnapshotRow
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSnapshots(rows), nil
}

func toSnapshot(row SnapshotRow) Snapshot {
	return Snapshot{
		Seq:       row.Seq,
		Kind:      Kind(row.Kind),
		EntityID:  row.EntityID,
		Payload:   []byte(row.Payload),
		CreatedAt: row.CreatedAt,
	}
}

func toSnapshots(rows []SnapshotRow) []Snapshot {
	out := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSnapshot(row))
	}
	return out
}
