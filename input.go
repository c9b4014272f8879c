package main

// charSink receives characters decoded from the keyboard.
type charSink interface {
	PutChar(r rune)
}

// inputQueue is the process-wide buffer between the keyboard handler and
// its readers. Characters arriving while it is full are dropped.
type inputQueue struct {
	mu      spinMutex
	buf     [256]rune
	head, n int
	dropped int
}

func newInputQueue() *inputQueue {
	return &inputQueue{mu: spinMutex{name: "input"}}
}

func (q *inputQueue) PutChar(r rune) {
	q.mu.lock()
	defer q.mu.unlock()
	if q.n == len(q.buf) {
		q.dropped++
		return
	}
	q.buf[(q.head+q.n)%len(q.buf)] = r
	q.n++
}

func (q *inputQueue) pop() (rune, bool) {
	q.mu.lock()
	defer q.mu.unlock()
	if q.n == 0 {
		return 0, false
	}
	r := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return r, true
}
