package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"trafficcap/internal/infra/persistence/postgres/testutil"
	"trafficcap/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresStateTable(t *testing.T) {
	_, conn := openStub(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS STATE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected state DDL, got execs: %v", conn.Execs)
	}
}

func TestRunInTransactionPersistsState(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)

	var traffic domain.Traffic
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		traffic, err = tx.CreateTraffic(domain.Traffic{RoadName: "Main St", TrafficLimit: 10})
		if err != nil {
			return err
		}
		_, err = tx.CreateHousing(domain.Housing{HousingName: "Block A", NumberOfResidents: 3, TrafficID: traffic.ID})
		return err
	}); err != nil {
		t.Fatalf("run transaction: %v", err)
	}

	rows := conn.Tables["state"]
	if len(rows) != len(postgresBuckets) {
		t.Fatalf("expected %d bucket rows, got %d", len(postgresBuckets), len(rows))
	}
	for _, row := range rows {
		if row["bucket"] != bucketTraffic {
			continue
		}
		var persisted map[string]domain.Traffic
		if err := json.Unmarshal(row["payload"].([]byte), &persisted); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if persisted[traffic.ID].TrafficLimit != 10 {
			t.Fatalf("unexpected persisted traffic %+v", persisted)
		}
	}
}

func TestNewStoreHydratesFromSnapshot(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	traffic, _ := json.Marshal(map[string]domain.Traffic{"t1": {RoadName: "Main St", TrafficLimit: 7}})
	housing, _ := json.Marshal(map[string]domain.Housing{"h1": {HousingName: "A", NumberOfResidents: 5, TrafficID: "t1"}})
	conn.Tables["state"] = []map[string]any{
		{"bucket": bucketTraffic, "payload": traffic},
		{"bucket": bucketHousing, "payload": housing},
		{"bucket": "legacy", "payload": []byte(`{}`)},
	}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore(ctx, "postgres://example", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	got, ok := store.GetTraffic("t1")
	if !ok || got.TrafficLimit != 7 {
		t.Fatalf("expected hydrated traffic, got %+v (ok=%v)", got, ok)
	}
	if remaining := domain.RemainingLimit(viewOf(t, store), "t1"); remaining != 2 {
		t.Fatalf("expected remaining limit 2 after hydration, got %d", remaining)
	}
}

func viewOf(t *testing.T, store *Store) domain.RuleView {
	t.Helper()
	var captured domain.RuleView
	if err := store.View(context.Background(), func(v domain.TransactionView) error {
		captured = v
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	return captured
}

func TestNewStoreErrors(t *testing.T) {
	ctx := context.Background()

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("dial") })
	if _, err := NewStore(ctx, "", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	cases := []struct {
		name   string
		mutate func(*testutil.StubConn)
		want   string
	}{
		{name: "ping", mutate: func(c *testutil.StubConn) { c.FailPing = true }, want: "ping postgres"},
		{name: "ddl", mutate: func(c *testutil.StubConn) { c.FailExec = true }, want: "ensure state table"},
		{name: "select", mutate: func(c *testutil.StubConn) { c.FailTables = map[string]bool{"state": true} }, want: "select state"},
		{name: "decode", mutate: func(c *testutil.StubConn) {
			c.Tables["state"] = []map[string]any{{"bucket": bucketTraffic, "payload": []byte("{")}}
		}, want: "decode traffic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, conn := testutil.NewStubDB()
			tc.mutate(conn)
			restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
			defer restore()
			if _, err := NewStore(ctx, "", nil); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
}

func TestPersistFailuresSurface(t *testing.T) {
	ctx := context.Background()
	create := func(tx domain.Transaction) error {
		_, err := tx.CreateTraffic(domain.Traffic{RoadName: "Main St", TrafficLimit: 1})
		return err
	}

	store, conn := openStub(t)
	conn.FailBegin = true
	if _, err := store.RunInTransaction(ctx, create); err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin error, got %v", err)
	}
	if n := len(store.ListTraffic()); n != 0 {
		t.Fatalf("failed persist must not commit to memory, found %d traffic", n)
	}

	store, conn = openStub(t)
	conn.FailCommit = true
	if _, err := store.RunInTransaction(ctx, create); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
	if n := len(store.ListTraffic()); n != 0 {
		t.Fatalf("failed persist must not commit to memory, found %d traffic", n)
	}

	store, conn = openStub(t)
	conn.FailTables = map[string]bool{"state": true}
	if _, err := store.RunInTransaction(ctx, create); err == nil || !strings.Contains(err.Error(), "upsert traffic") {
		t.Fatalf("expected upsert error, got %v", err)
	}
	if conn.Rollbacks == 0 {
		t.Fatalf("expected rollback after failed upsert")
	}
	if n := len(store.ListTraffic()); n != 0 {
		t.Fatalf("failed persist must not commit to memory, found %d traffic", n)
	}
}
