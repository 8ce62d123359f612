package reconcile

import "time"

// Observer receives engine outcomes. The metrics package implements it.
type Observer interface {
	Applied(dir Direction, applied bool, elapsed time.Duration)
	Warned(code WarningCode)
	Failed(code string)
	BatchFinished(requested, reconciled int, deleted int64)
}

type nopObserver struct{}

func (nopObserver) Applied(Direction, bool, time.Duration) {}
func (nopObserver) Warned(WarningCode)                     {}
func (nopObserver) Failed(string)                          {}
func (nopObserver) BatchFinished(int, int, int64)          {}
