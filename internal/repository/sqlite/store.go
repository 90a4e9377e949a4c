package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/NordCoder/opsmonitor/internal/domain/record"
)

var (
	_ record.Repo       = (*Store)(nil)
	_ record.Transactor = (*Store)(nil)
	_ record.Pruner     = (*Store)(nil)
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type recordRow struct {
	Key       string `gorm:"column:record_key;primaryKey"`
	Value     []byte `gorm:"not null"`
	Metadata  string `gorm:"not null;default:'{}'"`
	ExpiresAt *int64 `gorm:"index"`
	CreatedAt time.Time
}

func (recordRow) TableName() string { return "records" }

type Store struct {
	db    *gorm.DB
	clock record.Clock
}

// Open creates the database file if needed and migrates the records table.
func Open(path string, clock record.Clock) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db, clock: clock}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type txKey struct{}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *Store) Save(ctx context.Context, key string, value []byte, opts record.SaveOptions) error {
	md := opts.Metadata
	if md == nil {
		md = map[string]string{}
	}
	mdJSON, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	row := recordRow{
		Key:       key,
		Value:     value,
		Metadata:  string(mdJSON),
		CreatedAt: s.clock.Now().UTC(),
	}
	if exp := opts.ExpiresAt(s.clock.Now()); exp != nil {
		n := exp.UnixNano()
		row.ExpiresAt = &n
	}

	upsert := func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("upsert record %s: %w", key, err)
		}
		return nil
	}
	if !opts.Create {
		return upsert(s.conn(ctx))
	}
	// an expired row under the same key may be replaced
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := s.live(tx.Model(&recordRow{})).Where("record_key = ?", key).Count(&n).Error; err != nil {
			return fmt.Errorf("check record %s: %w", key, err)
		}
		if n > 0 {
			return record.ErrExists
		}
		return upsert(tx)
	})
}

func (s *Store) Get(ctx context.Context, key string) (record.Entry, error) {
	var row recordRow
	err := s.live(s.conn(ctx)).Where("record_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record.Entry{}, record.ErrNotFound
	}
	if err != nil {
		return record.Entry{}, fmt.Errorf("get record %s: %w", key, err)
	}
	return row.entry()
}

// Query filters by prefix, key bound and metadata in SQL. Metadata fields
// are matched with json_extract on the stored object.
func (s *Store) Query(ctx context.Context, q record.Query) ([]record.Entry, error) {
	tx := s.live(s.conn(ctx))
	if q.Prefix != "" {
		tx = tx.Where("substr(record_key, 1, ?) = ?", len(q.Prefix), q.Prefix)
	}
	if q.From != "" {
		tx = tx.Where("record_key >= ?", q.From)
	}
	fields := make([]string, 0, len(q.Metadata))
	for k := range q.Metadata {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, k := range fields {
		tx = tx.Where("json_extract(metadata, ?) = ?", `$."`+k+`"`, q.Metadata[k])
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "record_key"}, Desc: q.Desc})
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []recordRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	out := make([]record.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Prune(ctx context.Context) (int64, error) {
	res := s.conn(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.clock.Now().UnixNano()).
		Delete(&recordRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) live(tx *gorm.DB) *gorm.DB {
	return tx.Where("expires_at IS NULL OR expires_at > ?", s.clock.Now().UnixNano())
}

func (r recordRow) entry() (record.Entry, error) {
	md := map[string]string{}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &md); err != nil {
			return record.Entry{}, fmt.Errorf("decode metadata of %s: %w", r.Key, err)
		}
	}
	e := record.Entry{Key: r.Key, Value: r.Value, Metadata: md}
	if r.ExpiresAt != nil {
		t := time.Unix(0, *r.ExpiresAt).UTC()
		e.ExpiresAt = &t
	}
	return e, nil
}
