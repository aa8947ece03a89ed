// Package syncio wraps an asynchronous serialio.Port with a dedicated
// driver goroutine and blocking method calls: every method builds a job
// closure, posts it to the driver, and blocks on the job's own result
// channel. All calls on one Port therefore serialize through a single
// goroutine, regardless of how many callers invoke them concurrently, while
// the wrapped async core keeps its own reader running independently.
package syncio
