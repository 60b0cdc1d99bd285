// Package sink delivers decoded lines to their consumers: the terminal,
// per-token files and a single authenticated TCP client.
//
// Every sink satisfies market.Sink. Emit never blocks on I/O; the file and
// relay sinks queue lines for a background writer and drop the oldest
// queued line when the queue is full.
package sink
