// Package poller tracks long-running external work orders for active
// investigations. A supervisor owns one timer-driven task per investigation;
// each task polls the remote status endpoint for a single work order id until
// the order completes, the caller abandons it, or the tracked id changes.
// Completion is merged into the finding store at most once, guarded by a
// conditional write, and produces at most one notification.
package poller
