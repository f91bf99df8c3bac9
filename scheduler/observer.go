package scheduler

// Observer receives non-blocking, best-effort progress events.
// Implementations must return promptly; a slow observer may have events
// dropped rather than stall the scheduler.
type Observer interface {
	BatchStarted(fovs []int)
	StageStarted(fov int, stage string)
	StageFinished(fov int, stage string, ok bool, msg string)
	BatchFinished(fovs []int)
	Warning(kind, msg string)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) BatchStarted([]int)                      {}
func (NopObserver) StageStarted(int, string)                {}
func (NopObserver) StageFinished(int, string, bool, string) {}
func (NopObserver) BatchFinished([]int)                     {}
func (NopObserver) Warning(string, string)                  {}
