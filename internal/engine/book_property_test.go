package engine

import (
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestProperty_QueueEvaluationOrder checks that the queue always yields
// orders sorted by (created_at, seq), whatever the insertion order.
func TestProperty_QueueEvaluationOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numOrders")
		q := NewPendingQueue("X")
		for i := 0; i < n; i++ {
			offset := rapid.IntRange(0, 5).Draw(t, "minuteOffset")
			seq := rapid.Uint64Range(1, 1_000_000).Draw(t, "seq")
			q.Insert(makeOrder("acc", fmt.Sprintf("o-%d", i), "X", baseTime.Add(time.Duration(offset)*time.Minute), seq))
		}

		orders := q.Orders()
		for i := 1; i < len(orders); i++ {
			prev := QueueEntry{CreatedAt: orders[i-1].CreatedAt, Seq: orders[i-1].Seq}
			cur := QueueEntry{CreatedAt: orders[i].CreatedAt, Seq: orders[i].Seq}
			if submissionLess(cur, prev) {
				t.Fatalf("order %d (%s, seq %d) before order %d (%s, seq %d)",
					i-1, prev.CreatedAt, prev.Seq, i, cur.CreatedAt, cur.Seq)
			}
		}
	})
}

// TestProperty_QueueRemoveKeepsRest checks that removing a subset leaves
// exactly the complement, still in evaluation order.
func TestProperty_QueueRemoveKeepsRest(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(t, "numOrders")
		q := NewPendingQueue("X")
		for i := 0; i < n; i++ {
			q.Insert(makeOrder("acc", fmt.Sprintf("o-%d", i), "X", baseTime, uint64(i+1)))
		}

		removed := make(map[string]bool)
		for _, o := range q.Orders() {
			if rapid.Bool().Draw(t, "remove") {
				q.Remove(o)
				removed[o.OrderID] = true
			}
		}

		if q.Len() != n-len(removed) {
			t.Fatalf("Len = %d, want %d", q.Len(), n-len(removed))
		}
		var lastSeq uint64
		for _, o := range q.Orders() {
			if removed[o.OrderID] {
				t.Fatalf("removed order %s still queued", o.OrderID)
			}
			if o.Seq <= lastSeq {
				t.Fatalf("seq %d after %d", o.Seq, lastSeq)
			}
			lastSeq = o.Seq
		}
	})
}
