package data

import (
	"fmt"

	"gorm.io/gorm"
)

// MatchRecord is the persisted outcome of one lobby game cycle.
type MatchRecord struct {
	gorm.Model

	LobbyID     uint32
	LobbyName   string
	GameType    string
	MemberCount int
	// Outcome is "completed" for games that ran, "failed_to_start" for
	// games whose server never came up.
	Outcome string
}

func (MatchRecord) TableName() string {
	return "match_records"
}

// CreateMatchRecord persists a finished match.
func CreateMatchRecord(db *gorm.DB, record *MatchRecord) error {
	if err := db.Create(record).Error; err != nil {
		return fmt.Errorf("error creating match record: %w", err)
	}
	return nil
}

// RecentMatches returns up to limit match records, newest first.
func RecentMatches(db *gorm.DB, limit int) ([]MatchRecord, error) {
	var records []MatchRecord
	err := db.Order("created_at desc").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("error listing match records: %w", err)
	}
	return records, nil
}
