// Package ledger records which decoder identities the firmware builder has
// provisioned, in a local SQLite database via GORM. This is purely
// off-device bookkeeping: the decoder core never reads or writes it.
package ledger

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Record is one provisioning event.
type Record struct {
	ID             uint `gorm:"primaryKey"`
	DecoderID      uint32
	IssuedAt       time.Time
	EmergencyStart uint64
	EmergencyEnd   uint64
}

// Ledger wraps a GORM-backed SQLite provisioning database.
type Ledger struct {
	db *gorm.DB
}

// Open opens (creating and migrating if absent) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record inserts a provisioning event.
func (l *Ledger) Record(r Record) error {
	if err := l.db.Create(&r).Error; err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

// ByDecoderID returns every provisioning event recorded for a decoder id, in
// issue order, most recent first.
func (l *Ledger) ByDecoderID(decoderID uint32) ([]Record, error) {
	var out []Record
	if err := l.db.Where("decoder_id = ?", decoderID).Order("issued_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("ledger: query decoder %d: %w", decoderID, err)
	}
	return out, nil
}

// All returns every provisioning event, most recent first.
func (l *Ledger) All() ([]Record, error) {
	var out []Record
	if err := l.db.Order("issued_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("ledger: query all: %w", err)
	}
	return out, nil
}
