package engine

import (
	"sort"
	"time"

	"github.com/google/btree"

	"github.com/efreitasn/papertrade/internal/domain"
)

// QueueEntry is one pending order waiting on its instrument's next candle.
type QueueEntry struct {
	CreatedAt time.Time
	Seq       uint64
	OrderID   string
	Order     *domain.Order
}

// submissionLess orders entries by created_at ascending, then by
// submission sequence. Min() is the oldest pending order.
func submissionLess(a, b QueueEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// PendingQueue holds the pending orders of one instrument in evaluation
// order, with a secondary index for O(log n) removal by order ID.
// It is not safe for concurrent use; the engine lock guards it.
type PendingQueue struct {
	instrumentID string
	tree         *btree.BTreeG[QueueEntry]
	index        map[string]QueueEntry // account_id/order_id → entry
}

// NewPendingQueue creates an empty queue for the instrument.
func NewPendingQueue(instrumentID string) *PendingQueue {
	const degree = 32
	return &PendingQueue{
		instrumentID: instrumentID,
		tree:         btree.NewG[QueueEntry](degree, submissionLess),
		index:        make(map[string]QueueEntry),
	}
}

func queueKey(o *domain.Order) string {
	return o.AccountID + "/" + o.OrderID
}

// Insert adds a pending order.
func (q *PendingQueue) Insert(o *domain.Order) {
	e := QueueEntry{CreatedAt: o.CreatedAt, Seq: o.Seq, OrderID: o.OrderID, Order: o}
	q.tree.ReplaceOrInsert(e)
	q.index[queueKey(o)] = e
}

// Remove deletes an order from the queue. It is a no-op for unknown
// orders.
func (q *PendingQueue) Remove(o *domain.Order) {
	key := queueKey(o)
	e, ok := q.index[key]
	if !ok {
		return
	}
	delete(q.index, key)
	q.tree.Delete(e)
}

// Orders returns the queued orders in evaluation order. The slice is a
// copy, so callers may remove orders while ranging over it.
func (q *PendingQueue) Orders() []*domain.Order {
	out := make([]*domain.Order, 0, q.tree.Len())
	q.tree.Ascend(func(e QueueEntry) bool {
		out = append(out, e.Order)
		return true
	})
	return out
}

// Len returns the number of queued orders.
func (q *PendingQueue) Len() int {
	return q.tree.Len()
}

// QueueManager maps instrument_id → PendingQueue.
type QueueManager struct {
	queues map[string]*PendingQueue
}

// NewQueueManager creates an empty QueueManager.
func NewQueueManager() *QueueManager {
	return &QueueManager{queues: make(map[string]*PendingQueue)}
}

// GetOrCreate returns the instrument's queue, creating it if needed.
func (m *QueueManager) GetOrCreate(instrumentID string) *PendingQueue {
	q, ok := m.queues[instrumentID]
	if !ok {
		q = NewPendingQueue(instrumentID)
		m.queues[instrumentID] = q
	}
	return q
}

// Remove drops an order from its instrument's queue and forgets empty
// queues.
func (m *QueueManager) Remove(o *domain.Order) {
	q, ok := m.queues[o.InstrumentID]
	if !ok {
		return
	}
	q.Remove(o)
	if q.Len() == 0 {
		delete(m.queues, o.InstrumentID)
	}
}

// Active returns the instruments with at least one pending order, sorted.
func (m *QueueManager) Active() []string {
	ids := make([]string, 0, len(m.queues))
	for id, q := range m.queues {
		if q.Len() > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the total number of queued orders.
func (m *QueueManager) Len() int {
	n := 0
	for _, q := range m.queues {
		n += q.Len()
	}
	return n
}

// Reset drops every queue.
func (m *QueueManager) Reset() {
	m.queues = make(map[string]*PendingQueue)
}
