package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/travelplanner/internal/metrics"
)

// mockPruner はPrunerのモック実装。
type mockPruner struct {
	mu      sync.Mutex
	calls   int
	lastNow time.Time
	deleted int64
	err     error
}

func (m *mockPruner) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastNow = now
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.deleted, m.err
}

func (m *mockPruner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// prunedRecorder は削除件数だけを記録するメトリクス。
type prunedRecorder struct {
	metrics.Noop
	mu     sync.Mutex
	pruned []int64
}

func (r *prunedRecorder) RecordBlacklistPruned(count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned = append(r.pruned, count)
}

var (
	_ Pruner                   = (*mockPruner)(nil)
	_ metrics.MetricsCollector = (*prunedRecorder)(nil)
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestTokenCleanupJob_Run_PrunesWithCurrentTime(t *testing.T) {
	var buf bytes.Buffer
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	pruner := &mockPruner{deleted: 3}
	job := NewTokenCleanupJob(pruner, newTestLogger(&buf), nil)
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if pruner.callCount() != 1 {
		t.Fatalf("PruneExpired 呼び出し回数 = %d, want 1", pruner.callCount())
	}
	if !pruner.lastNow.Equal(fixed) {
		t.Errorf("now = %v, want %v", pruner.lastNow, fixed)
	}
}

func TestTokenCleanupJob_Run_LogsAndRecordsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	recorder := &prunedRecorder{}

	job := NewTokenCleanupJob(&mockPruner{deleted: 42}, newTestLogger(&buf), recorder)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["deleted_count"] == float64(42) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}

	if len(recorder.pruned) != 1 || recorder.pruned[0] != 42 {
		t.Errorf("pruned metrics = %v, want [42]", recorder.pruned)
	}
}

func TestTokenCleanupJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	recorder := &prunedRecorder{}

	job := NewTokenCleanupJob(&mockPruner{err: sql.ErrConnDone}, newTestLogger(&buf), recorder)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
	if len(recorder.pruned) != 0 {
		t.Errorf("失敗時に削除件数を記録してはならない: %v", recorder.pruned)
	}
}

func TestTokenCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	job := NewTokenCleanupJob(&mockPruner{}, newTestLogger(&buf), nil)

	for i := range 2 {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
	}
}

func TestTokenCleanupJob_Run_RespectsContext(t *testing.T) {
	var buf bytes.Buffer
	job := NewTokenCleanupJob(&mockPruner{}, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := job.Run(ctx); err == nil {
		t.Error("キャンセル済みコンテキストでは Run() はエラーを返すべき")
	}
}

func TestTokenCleanupJob_Start_RunsImmediatelyAndStops(t *testing.T) {
	var buf bytes.Buffer
	pruner := &mockPruner{}
	job := NewTokenCleanupJob(pruner, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for pruner.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("起動直後に Run が実行されなかった")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("コンテキストのキャンセル後に Start が終了しなかった")
	}
}

func TestTokenCleanupJob_Start_RunsOnTicker(t *testing.T) {
	var buf bytes.Buffer
	pruner := &mockPruner{}
	job := NewTokenCleanupJob(pruner, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go job.Start(ctx, 10*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for pruner.callCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("ticker による実行回数 = %d, want >= 3", pruner.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
