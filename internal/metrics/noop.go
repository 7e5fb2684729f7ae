package metrics

import "time"

// Noop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Noop struct{}

// NewNoop はNoopを返す。
func NewNoop() Noop { return Noop{} }

func (Noop) RecordLoginSuccess(string, bool)             {}
func (Noop) RecordLoginFailure(string, string)           {}
func (Noop) RecordTokenRefresh(bool)                     {}
func (Noop) RecordTokenRevoked(string)                   {}
func (Noop) RecordBlacklistHit()                         {}
func (Noop) RecordBlacklistPruned(int64)                 {}
func (Noop) RecordHTTPStatus(int)                        {}
func (Noop) RecordProviderLatency(string, time.Duration) {}

var _ MetricsCollector = Noop{}
