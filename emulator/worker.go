package emulator

import (
	"context"
	"runtime"
)

// Runs the consumer loop: pumps until caught up, spins briefly, then sleeps
// until the producer updates the write pointer. Returns nil when ctx is
// cancelled and the first pump error otherwise; what to do with a bad
// command stream is up to the caller. A later Run resumes at the read index
// of the last fully executed packet
func (cp *CommandProcessor) Run(ctx context.Context) error {
	cp.l.Info("Command processor started")
	defer cp.l.Info("Command processor stopped")

	for {
		progress, err := cp.Pump(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		if !progress.Idle() || cp.spin(ctx) {
			continue
		}

		if err := cp.handshake.Wait(ctx); err != nil {
			return nil
		}
	}
}

// Polls the write pointer up to SpinCount times. Returns true if new data
// arrived
func (cp *CommandProcessor) spin(ctx context.Context) bool {
	for i := 0; i < cp.opts.SpinCount; i++ {
		if ctx.Err() != nil {
			return false
		}
		if cp.pending() {
			return true
		}
		runtime.Gosched()
	}
	return false
}
