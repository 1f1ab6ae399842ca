package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trafficcap/pkg/domain"
)

type captureAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	mu      sync.Mutex
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) add(entry string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, entry)
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:" + msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.add("i:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:" + msg) }

func (c *captureLogger) count(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// faultyStore fails or panics on every call so the service boundary can be
// exercised without a real backend.
type faultyStore struct {
	err   error
	panic bool
}

func (f faultyStore) fail() error {
	if f.panic {
		panic("store exploded")
	}
	if f.err != nil {
		return f.err
	}
	return errors.New("store unavailable")
}

func (f faultyStore) RunInTransaction(context.Context, func(domain.Transaction) error) (domain.Result, error) {
	return domain.Result{}, f.fail()
}

func (f faultyStore) View(context.Context, func(domain.TransactionView) error) error {
	return f.fail()
}

func (faultyStore) GetTraffic(string) (domain.Traffic, bool) { return domain.Traffic{}, false }
func (faultyStore) ListTraffic() []domain.Traffic            { return nil }
func (faultyStore) GetHousing(string) (domain.Housing, bool) { return domain.Housing{}, false }
func (faultyStore) ListHousing() []domain.Housing            { return nil }
func (faultyStore) ExportState() domain.Snapshot             { return domain.Snapshot{} }

func mustCreateTraffic(t *testing.T, svc *Service, road string, limit int) string {
	t.Helper()
	id, err := svc.CreateTraffic(context.Background(), TrafficPayload{RoadName: road, Limit: limit})
	if err != nil {
		t.Fatalf("create traffic %s: %v", road, err)
	}
	return id
}

func mustCreateHousing(t *testing.T, svc *Service, name string, residents int, trafficID string) HousingResponse {
	t.Helper()
	resp, err := svc.CreateHousing(context.Background(), HousingPayload{HousingName: name, NumberOfResidents: residents, TrafficID: trafficID})
	if err != nil {
		t.Fatalf("create housing %s: %v", name, err)
	}
	return resp
}
