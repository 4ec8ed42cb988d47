package integration_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	oeeapp "oee-cloud/internal/oee/application"
	oee "oee-cloud/internal/oee/domain"
	oeerepo "oee-cloud/internal/oee/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestOEE_PostgresHybridMatchesLive(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := applyOEEMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	ctx := context.Background()
	serial := "M-it-001"
	cleanup(ctx, db, serial)
	defer cleanup(ctx, db, serial)

	if _, err := db.ExecContext(ctx, `INSERT INTO machines (serial, name) VALUES ($1, 'press') ON CONFLICT (serial) DO NOTHING`, serial); err != nil {
		t.Fatalf("seed machine: %v", err)
	}

	day := func(d, h int) time.Time { return time.Date(2026, time.March, d, h, 0, 0, 0, time.UTC) }
	store := oeerepo.NewStore(db, time.UTC)
	for _, d := range []int{10, 11, 12} {
		inserted, err := store.InsertStateEvents(ctx, oee.EntityMachine, []oee.StateEvent{
			{EntityRef: oee.EntityRef(serial), Timestamp: day(d, 8), StatusCode: oee.StatusRunning, ActiveItems: []string{"towel"}},
			{EntityRef: oee.EntityRef(serial), Timestamp: day(d, 10), StatusCode: oee.StatusPaused},
		})
		if err != nil || inserted != 2 {
			t.Fatalf("insert events: inserted=%d err=%v", inserted, err)
		}
		_, err = db.ExecContext(ctx, `
INSERT INTO machine_sessions (
	entity_ref, start_at, end_at, runtime_sec, worked_time_sec, time_credit_sec,
	valid_count, misfeed_count, count_timestamps, items
) VALUES ($1,$2,$3,7200,7000,5600,90,10,$4,$5)`,
			serial, day(d, 8), day(d, 10), []time.Time{day(d, 8).Add(time.Minute), day(d, 9)},
			`[{"item_id":"towel","runtime_sec":7200,"worked_time_sec":7000,"time_credit_sec":5600,"valid_count":90,"misfeed_count":10}]`)
		if err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}
	if _, err := db.ExecContext(ctx, `
INSERT INTO oee_rollups (entity_type, entity_key, day, document, updated_at)
VALUES ('machine', $1, '2026-03-11', $2, NOW())`, serial,
		`{"metrics":{"timers":{"run":7200000,"worked":7000000,"fault":0},"totals":{"timeCredit":5600000,"counts":90,"misfeeds":10}},"dateObj":"2026-03-11T00:00:00Z"}`); err != nil {
		t.Fatalf("seed rollup: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
INSERT INTO oee_rollups (entity_type, entity_key, source_key, day, document, updated_at)
VALUES ('machine', $1, 'legacy', '2026-03-11', '{"foo":1}', NOW())`, serial); err != nil {
		t.Fatalf("seed malformed rollup: %v", err)
	}
	rollups, err := store.ListRollups(ctx, oee.EntityMachine, "2026-03-10", "2026-03-12", []oee.EntityRef{oee.EntityRef(serial)})
	if err != nil {
		t.Fatalf("malformed rollup row must be skipped: %v", err)
	}
	if len(rollups) != 1 || rollups[0].SourceKey != "" || rollups[0].Date != "2026-03-11" {
		t.Fatalf("expected only the valid rollup row, got %+v", rollups)
	}

	inserted, err := store.InsertStateEvents(ctx, oee.EntityMachine, []oee.StateEvent{
		{EntityRef: oee.EntityRef(serial), Timestamp: day(10, 8), StatusCode: oee.StatusRunning},
	})
	if err != nil || inserted != 0 {
		t.Fatalf("re-sent event must be ignored: inserted=%d err=%v", inserted, err)
	}

	cfg := oeeapp.DefaultConfig()
	svc, err := oeeapp.NewMetricsService(store, cfg, fixedClock{now: day(12, 14)}, nil)
	if err != nil {
		t.Fatalf("metrics service: %v", err)
	}

	query := oeeapp.MetricsQuery{EntityType: oee.EntityMachine, EntityRef: oee.EntityRef(serial), Start: day(10, 6), End: day(12, 12)}
	hybrid, err := svc.ComputeMetrics(ctx, query)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	query.ForceLive = true
	live, err := svc.ComputeMetrics(ctx, query)
	if err != nil {
		t.Fatalf("live: %v", err)
	}

	if hybrid.State != oeeapp.PlanResolvedHybrid {
		t.Fatalf("expected hybrid plan, got %s", hybrid.State)
	}
	if len(hybrid.Entities) != 1 || len(live.Entities) != 1 {
		t.Fatalf("expected one entity")
	}
	if hybrid.Entities[0].Totals != live.Entities[0].Totals {
		t.Fatalf("hybrid/live mismatch: %+v vs %+v", hybrid.Entities[0].Totals, live.Entities[0].Totals)
	}
	if hybrid.Entities[0].Totals.RuntimeSec != 3*7200 {
		t.Fatalf("runtime mismatch: %v", hybrid.Entities[0].Totals.RuntimeSec)
	}

	items, err := store.ListActiveEntities(ctx, oee.EntityMachineItem)
	if err != nil {
		t.Fatalf("list machine items: %v", err)
	}
	found := false
	for _, ref := range items {
		if ref == oee.NewItemRef(serial, "towel") {
			found = true
		}
	}
	if !found {
		t.Fatalf("machine item not listed: %v", items)
	}
}

func cleanup(ctx context.Context, db *sql.DB, serial string) {
	_, _ = db.ExecContext(ctx, "DELETE FROM state_events WHERE entity_ref = $1", serial)
	_, _ = db.ExecContext(ctx, "DELETE FROM machine_sessions WHERE entity_ref = $1", serial)
	_, _ = db.ExecContext(ctx, "DELETE FROM oee_rollups WHERE entity_key = $1", serial)
	_, _ = db.ExecContext(ctx, "DELETE FROM machines WHERE serial = $1", serial)
}

func applyOEEMigrations(db *sql.DB) error {
	content, err := os.ReadFile(filepath.Join(projectRoot(), "migrations", "001_oee.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(content))
	return err
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}
