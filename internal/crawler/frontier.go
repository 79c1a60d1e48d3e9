package crawler

// Frontier is the FIFO queue of pending URLs plus the set of every URL ever
// admitted. Every queued URL is also in the seen set, and the seen set only
// grows. It is not safe for concurrent use; the crawl loop owns it.
type Frontier struct {
	queue    []string
	seen     map[string]struct{}
	seenCap  int
	queueCap int
}

// NewFrontier builds a frontier that admits at most seenCap distinct URLs and
// holds at most queueCap pending ones.
func NewFrontier(seenCap, queueCap int) *Frontier {
	return &Frontier{
		seen:     make(map[string]struct{}),
		seenCap:  seenCap,
		queueCap: queueCap,
	}
}

// Offer enqueues u if it has not been seen and neither cap is reached.
// It reports whether u was admitted.
func (f *Frontier) Offer(u string) bool {
	if _, ok := f.seen[u]; ok {
		return false
	}
	if len(f.seen) >= f.seenCap || len(f.queue) >= f.queueCap {
		return false
	}
	f.seen[u] = struct{}{}
	f.queue = append(f.queue, u)
	return true
}

// Next pops the oldest pending URL.
func (f *Frontier) Next() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	u := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	return u, true
}

// Seen reports whether u was ever admitted.
func (f *Frontier) Seen(u string) bool {
	_, ok := f.seen[u]
	return ok
}

// Pending returns the number of queued URLs.
func (f *Frontier) Pending() int {
	return len(f.queue)
}

// SeenCount returns the number of distinct URLs admitted so far.
func (f *Frontier) SeenCount() int {
	return len(f.seen)
}
