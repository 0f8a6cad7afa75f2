package data

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gorm.io/gorm"
)

func setUpDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Initialize(filepath.Join(t.TempDir(), "arcadia_test.db"), false)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() {
		if err := Shutdown(db); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
	return db
}

func TestCreateMatchRecord(t *testing.T) {
	db := setUpDatabase(t)

	record := &MatchRecord{
		LobbyID:     3,
		LobbyName:   "2v2 Arena",
		GameType:    "arena",
		MemberCount: 4,
		Outcome:     "completed",
	}
	if err := CreateMatchRecord(db, record); err != nil {
		t.Fatalf("CreateMatchRecord() error = %v", err)
	}

	records, err := RecentMatches(db, 10)
	if err != nil {
		t.Fatalf("RecentMatches() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("RecentMatches() returned %d records, want 1", len(records))
	}
	if diff := cmp.Diff(*record, records[0], cmpopts.IgnoreFields(MatchRecord{}, "Model")); diff != "" {
		t.Errorf("unexpected match record (-want +got):\n%s", diff)
	}
}

func TestRecentMatchesOrderAndLimit(t *testing.T) {
	db := setUpDatabase(t)

	base := time.Now().Add(-time.Hour)
	for i, outcome := range []string{"failed_to_start", "completed", "completed"} {
		record := &MatchRecord{
			LobbyID: uint32(i + 1),
			Outcome: outcome,
		}
		record.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := CreateMatchRecord(db, record); err != nil {
			t.Fatalf("CreateMatchRecord(%d) error = %v", i, err)
		}
	}

	records, err := RecentMatches(db, 2)
	if err != nil {
		t.Fatalf("RecentMatches() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("RecentMatches(2) returned %d records, want 2", len(records))
	}
	if records[0].LobbyID != 3 || records[1].LobbyID != 2 {
		t.Errorf("RecentMatches(2) order = [%d, %d], want [3, 2]", records[0].LobbyID, records[1].LobbyID)
	}
}
