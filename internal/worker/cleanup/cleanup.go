// Package cleanup は失効済みトークンの定期削除ジョブを提供する。
// 有効期限を過ぎたブラックリストのエントリは検証に影響しないため、
// 定期的に削除してテーブルの肥大化を防ぐ。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/travelplanner/internal/metrics"
)

// Pruner は期限切れエントリの削除を抽象化するインターフェース。
// repository.TokenBlacklistRepository が満たす。
type Pruner interface {
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenCleanupJob は期限切れのブラックリストエントリを削除するジョブ。
// 冪等であり、複数のワーカーから同時に実行してもよい。
type TokenCleanupJob struct {
	pruner  Pruner
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewTokenCleanupJob は新しいTokenCleanupJobを生成する。
func NewTokenCleanupJob(pruner Pruner, logger *slog.Logger, collector metrics.MetricsCollector) *TokenCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewNoop()
	}
	return &TokenCleanupJob{
		pruner:  pruner,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
	}
}

// Run は現在時刻より前に期限切れとなったエントリを削除する。
// 削除対象がない場合もエラーにならない。
func (j *TokenCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.pruner.PruneExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("トークンクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("トークンクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordBlacklistPruned(deletedCount)

	j.logger.Info("トークンクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回、以降 interval ごとに Run を実行する。
// ctx がキャンセルされるまでブロックする。
func (j *TokenCleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("トークンクリーンアップを開始しました",
		slog.Duration("interval", interval),
	)

	j.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("トークンクリーンアップを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *TokenCleanupJob) runLogged(ctx context.Context) {
	// エラーは Run 内で記録済み
	_ = j.Run(ctx)
}
