package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stakefarm/core/events"
)

// EventRecord is the persisted form of a published event.
type EventRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Type       string `gorm:"index;not null"`
	Account    string `gorm:"index"`
	Attributes string `gorm:"type:text;not null"`
	CreatedAt  time.Time
}

// Filter narrows Query results. Zero values match everything.
type Filter struct {
	Type    string
	Account string
	Limit   int
}

// Archive stores every event it receives in a SQL database.
type Archive struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to dsn and migrates the schema. postgres:// URLs select the
// Postgres driver; anything else is treated as a SQLite path or DSN.
func Open(dsn string, log *slog.Logger) (*Archive, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errors.New("archive: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	return New(db, log)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Archive, error) {
	if db == nil {
		return nil, errors.New("archive: database required")
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Archive{db: db, logger: log}, nil
}

// Emit implements events.Emitter. Storage failures are logged and dropped.
func (a *Archive) Emit(evt events.Event) {
	if a == nil || evt == nil {
		return
	}
	rec := evt.Record()
	if rec == nil {
		return
	}
	if err := a.Append(*rec); err != nil {
		a.logger.Error("archive event", slog.String("type", rec.Type), slog.Any("error", err))
	}
}

// Append stores one record.
func (a *Archive) Append(rec events.Record) error {
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return err
	}
	row := EventRecord{
		Type:       rec.Type,
		Account:    rec.Attributes["account"],
		Attributes: string(attrs),
	}
	return a.db.Create(&row).Error
}

// Query returns the newest matching records, oldest first.
func (a *Archive) Query(filter Filter) ([]events.Record, error) {
	q := a.db.Model(&EventRecord{}).Order("id desc")
	if t := strings.TrimSpace(filter.Type); t != "" {
		q = q.Where("type = ?", t)
	}
	if acct := strings.TrimSpace(filter.Account); acct != "" {
		q = q.Where("account = ?", acct)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []EventRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]events.Record, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		attrs := map[string]string{}
		if err := json.Unmarshal([]byte(rows[i].Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("archive: decode record %d: %w", rows[i].ID, err)
		}
		out = append(out, events.Record{Type: rows[i].Type, Attributes: attrs})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
