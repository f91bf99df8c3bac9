package main

import "github.com/grailbio/base/log"

// logObserver reports scheduler progress via github.com/grailbio/base/log,
// in the log.Printf/log.Debug.Printf mix cmd/bio-pileup/main.go uses.
type logObserver struct{}

func (logObserver) BatchStarted(fovs []int) {
	log.Printf("batch started: fovs=%v", fovs)
}

func (logObserver) StageStarted(fov int, stage string) {
	log.Debug.Printf("fov %d: %s started", fov, stage)
}

func (logObserver) StageFinished(fov int, stage string, ok bool, msg string) {
	if ok {
		log.Debug.Printf("fov %d: %s finished", fov, stage)
		return
	}
	log.Error.Printf("fov %d: %s failed: %s", fov, stage, msg)
}

func (logObserver) BatchFinished(fovs []int) {
	log.Printf("batch finished: fovs=%v", fovs)
}

func (logObserver) Warning(kind, msg string) {
	log.Error.Printf("warning [%s]: %s", kind, msg)
}
