// Package crawler implements the bounded breadth-first frontier crawl: a
// single-host FIFO traversal with dedup, page and queue caps, a soft
// wall-clock deadline, and a fixed number of fetches in flight.
package crawler
