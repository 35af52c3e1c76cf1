// Package scanner provides the breach-deduplication and alert-emission
// pipeline. It defines the Service (sweeps, fingerprint dedup, best-effort
// notification), the Store interface (durable subjects and alerts), the
// Sweeper (scheduled invocation), and domain models.
package scanner
