package wal

import "time"

// Clock abstracts wall-clock time so the period-based roll policy can be
// driven by a fake clock in tests instead of sleeping through real
// rollPeriod multiples, the way original_source's TestLogRollPeriod does
// (it sleeps `(minRolls+1) * LOG_ROLL_PERIOD` real milliseconds per run).
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker abstracts *time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock is the production Clock, backed by the real time package.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (t *systemTicker) C() <-chan time.Time { return t.t.C }
func (t *systemTicker) Stop()               { t.t.Stop() }
