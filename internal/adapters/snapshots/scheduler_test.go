package snapshots

import (
	"context"
	"testing"
	"time"

	"trafficcap/internal/blob"
)

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	if _, err := NewScheduler(NewExporter(nil, blob.NewMemory()), "every tuesday", 0); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSchedulerJobExportsAndPrunes(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t)
	store := blob.NewMemory()
	log := &recordingLogger{}
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := NewExporter(svc.Store(), store, WithLogger(log), WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}))

	sched, err := NewScheduler(exp, "@hourly", 2)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	entries := sched.cron.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one cron entry, got %d", len(entries))
	}
	for i := 0; i < 3; i++ {
		entries[0].Job.Run()
	}
	list, _ := exp.List(ctx)
	if len(list) != 2 {
		t.Fatalf("expected retention of 2 snapshots, got %d", len(list))
	}
	if log.infos != 3 {
		t.Fatalf("expected 3 export logs, got %d", log.infos)
	}

	sched.Start()
	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
