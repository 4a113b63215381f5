package crawler

import "wbscraper/pkg/models"

// Queue is the deque of segments pending evaluation. Split halves go
// on the front so a dense range is fully narrowed before the crawl
// moves on, keeping results in rough chronological order.
type Queue struct {
	segments []models.Segment
}

// NewQueue creates a queue seeded with the given segments, front first.
func NewQueue(segments ...models.Segment) *Queue {
	q := &Queue{}
	q.segments = append(q.segments, segments...)
	return q
}

// PushBack appends a segment at the tail.
func (q *Queue) PushBack(seg models.Segment) {
	q.segments = append(q.segments, seg)
}

// PushFront places a split pair at the head with first popped before
// second, preserving chronological order between the halves.
func (q *Queue) PushFront(first, second models.Segment) {
	q.segments = append([]models.Segment{first, second}, q.segments...)
}

// PopFront removes and returns the head segment.
func (q *Queue) PopFront() (models.Segment, bool) {
	if len(q.segments) == 0 {
		return models.Segment{}, false
	}
	seg := q.segments[0]
	q.segments = q.segments[1:]
	return seg, true
}

// Len returns how many segments are pending.
func (q *Queue) Len() int {
	return len(q.segments)
}

// Snapshot copies the pending segments, front first.
func (q *Queue) Snapshot() []models.Segment {
	out := make([]models.Segment, len(q.segments))
	copy(out, q.segments)
	return out
}
