package memstore

import "container/list"

// orderedSet is an insertion-ordered set with O(1) add and remove. Re-adding an existing member keeps its position.
type orderedSet[K comparable] struct {
	items map[K]*list.Element
	order *list.List
}

func newOrderedSet[K comparable]() *orderedSet[K] {
	return &orderedSet[K]{
		items: make(map[K]*list.Element),
		order: list.New(),
	}
}

func (s *orderedSet[K]) Add(k K) {
	if _, ok := s.items[k]; ok {
		return
	}
	s.items[k] = s.order.PushBack(k)
}

func (s *orderedSet[K]) Remove(k K) {
	if e, ok := s.items[k]; ok {
		s.order.Remove(e)
		delete(s.items, k)
	}
}

func (s *orderedSet[K]) Len() int {
	return len(s.items)
}

// Values returns the members in insertion order. Never nil.
func (s *orderedSet[K]) Values() []K {
	out := make([]K, 0, len(s.items))
	for e := s.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(K))
	}
	return out
}
