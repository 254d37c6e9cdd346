package memory

import (
	"container/list"
	"sync"

	"github.com/agentguard-ai/agentguard/internal/domain/enrichment"
)

const defaultInsightCapacity = 1000

// InsightStore keeps the most recent insights keyed by event id. When the
// capacity is reached the oldest entry is evicted. Re-putting an existing
// event id moves it to most recent. Safe for concurrent use.
type InsightStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // front = oldest
	byEvent  map[string]*list.Element // value: enrichment.Insight
}

var _ enrichment.Store = (*InsightStore)(nil)

// NewInsightStore builds an InsightStore. A capacity <= 0 selects the
// default of 1000.
func NewInsightStore(capacity int) *InsightStore {
	if capacity <= 0 {
		capacity = defaultInsightCapacity
	}
	return &InsightStore{
		capacity: capacity,
		order:    list.New(),
		byEvent:  map[string]*list.Element{},
	}
}

// Put stores an insight, evicting the oldest entry when full.
func (s *InsightStore) Put(insight enrichment.Insight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.byEvent[insight.EventID]; ok {
		elem.Value = insight
		s.order.MoveToBack(elem)
		return
	}
	if s.order.Len() >= s.capacity {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.byEvent, oldest.Value.(enrichment.Insight).EventID)
	}
	s.byEvent[insight.EventID] = s.order.PushBack(insight)
}

// Get returns the insight for an event id.
func (s *InsightStore) Get(eventID string) (enrichment.Insight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.byEvent[eventID]
	if !ok {
		return enrichment.Insight{}, false
	}
	return elem.Value.(enrichment.Insight), true
}

// List returns up to limit insights, most recent first. A limit <= 0
// returns all.
func (s *InsightStore) List(limit int) []enrichment.Insight {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > s.order.Len() {
		limit = s.order.Len()
	}
	insights := make([]enrichment.Insight, 0, limit)
	for elem := s.order.Back(); elem != nil && len(insights) < limit; elem = elem.Prev() {
		insights = append(insights, elem.Value.(enrichment.Insight))
	}
	return insights
}

// Len returns the number of stored insights.
func (s *InsightStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
