// Package progress carries scrape lifecycle events from the workers to
// pluggable sinks (logs, Prometheus, Postgres).
//
// Workers call Emit on a Hub, which never blocks. The Hub batches events by
// count and age and hands each batch to every registered Sink. Close drains
// whatever is buffered before closing the sinks, so a finished run always
// reaches its sinks in full unless the buffer overflowed.
package progress
