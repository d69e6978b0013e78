package coop

// queue is a FIFO queue.
// Popped elements are taken from head; pushed ones are appended to tail.
// When head runs out, tail becomes the new head, so neither slice grows
// without bound under steady round-robin use.
type queue[E any] struct {
	head, tail []E
}

func (q *queue[E]) Empty() bool {
	return len(q.head) == 0 && len(q.tail) == 0
}

func (q *queue[E]) Len() int {
	return len(q.head) + len(q.tail)
}

func (q *queue[E]) Push(v E) {
	q.tail = append(q.tail, v)
}

func (q *queue[E]) Pop() (v E) {
	if len(q.head) == 0 {
		q.head, q.tail = q.tail, q.head[:0]
	}

	q.head[0], v = v, q.head[0]

	if len(q.head) > 1 {
		q.head = q.head[1:]
	} else {
		q.head = q.head[:0]
	}

	return v
}
