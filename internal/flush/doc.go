// Package flush defers and coalesces record writes.
//
// A Scheduler is either IDLE or PENDING. Arm moves IDLE to PENDING and starts
// a one-shot timer; arming while PENDING does nothing, so a burst of updates
// produces a single write. When the timer fires the scheduler returns to IDLE
// before the write starts, which lets updates made during a slow write arm
// the next one. Writes never overlap: scheduled, explicit and closing writes
// are serialized.
//
// Failed scheduled writes are not retried. The error is kept for LastError,
// logged at a throttled rate and reported to the OnFlush hook; the next Arm
// schedules a fresh attempt.
package flush
