// Package fetch provides the retrieval orchestration for monthly ERA5
// files.
//
// # Manager
//
// The Manager drives one retrieval run:
//
//  1. Partition the plan into files already on disk and files to fetch
//  2. Ask the operator to confirm the downloads (unless auto-confirmed)
//  3. Fan the pending requests out over a bounded worker pool
//  4. Report every completion and failure, then fail in aggregate
//
// # Concurrency
//
// Workers are limited by Settings.Concurrency (default 10). Each worker
// makes one blocking call into the archive client per descriptor. A
// failed request never cancels its siblings; failures are collected and
// returned together once the pool has drained.
//
// # Progress
//
// Progress is reported two ways: human-readable ProgressEvent values
// through a callback, and structured records through a zerolog logger.
package fetch
