package device

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/database"
	"github.com/fluxhaus/fluxhaus-core/migrations"
)

func openHistoryRepo(t *testing.T) *SQLiteStateHistoryRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "fluxhaus.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewSQLiteStateHistoryRepository(db.DB)
}

func TestStateHistory_RecordAndGet(t *testing.T) {
	repo := openHistoryRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, status := range []string{`{"phase":"charge"}`, `{"phase":"run"}`, `{"phase":"hmUsrDock"}`} {
		repo.now = fixedClock(base.Add(time.Duration(i) * time.Minute))
		if err := repo.RecordStateChange(ctx, NameBroombot, KindRobot, json.RawMessage(status), ""); err != nil {
			t.Fatalf("RecordStateChange: %v", err)
		}
	}
	repo.now = fixedClock(base)
	if err := repo.RecordStateChange(ctx, NameCar, KindVehicle, nil, StateHistorySourceResync); err != nil {
		t.Fatalf("RecordStateChange(car): %v", err)
	}

	entries, err := repo.GetHistory(ctx, NameBroombot, 2)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if string(entries[0].State) != `{"phase":"hmUsrDock"}` {
		t.Errorf("newest entry state = %s", entries[0].State)
	}
	if entries[0].Source != StateHistorySourceMQTT {
		t.Errorf("default source = %q", entries[0].Source)
	}
	if entries[0].Kind != KindRobot {
		t.Errorf("kind = %q", entries[0].Kind)
	}
	if !entries[1].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("CreatedAt = %v", entries[1].CreatedAt)
	}

	car, err := repo.GetHistory(ctx, NameCar, 0)
	if err != nil {
		t.Fatalf("GetHistory(car): %v", err)
	}
	if len(car) != 1 || string(car[0].State) != "null" || car[0].Source != StateHistorySourceResync {
		t.Errorf("car history = %+v", car)
	}
}

func TestStateHistory_Validation(t *testing.T) {
	repo := openHistoryRepo(t)
	ctx := context.Background()

	if err := repo.RecordStateChange(ctx, "", KindRobot, nil, ""); err == nil {
		t.Error("expected error for empty device id")
	}
	if err := repo.RecordStateChange(ctx, NameMopbot, KindRobot, json.RawMessage(`{bad`), ""); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := repo.GetHistory(ctx, "", 10); err == nil {
		t.Error("expected error for empty device id")
	}
}

func TestStateHistory_Prune(t *testing.T) {
	repo := openHistoryRepo(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	repo.now = fixedClock(now.Add(-48 * time.Hour))
	if err := repo.RecordStateChange(ctx, NameMopbot, KindRobot, json.RawMessage(`{}`), ""); err != nil {
		t.Fatal(err)
	}
	repo.now = fixedClock(now)
	if err := repo.RecordStateChange(ctx, NameMopbot, KindRobot, json.RawMessage(`{}`), ""); err != nil {
		t.Fatal(err)
	}

	n, err := repo.PruneHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}
	if _, err := repo.PruneHistory(ctx, 0); err == nil {
		t.Error("expected error for zero duration")
	}
}
