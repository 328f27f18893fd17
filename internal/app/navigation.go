package app

const defaultNavigationLimit = 64

// navigationStack holds previously visited screens. The oldest entries are
// dropped once limit is reached.
type navigationStack struct {
	entries []Screen
	limit   int
}

func newNavigationStack(limit int) *navigationStack {
	if limit <= 0 {
		limit = defaultNavigationLimit
	}
	return &navigationStack{limit: limit}
}

func (s *navigationStack) Push(screen Screen) {
	s.entries = append(s.entries, screen)
	if len(s.entries) > s.limit {
		trim := len(s.entries) - s.limit
		s.entries = append([]Screen(nil), s.entries[trim:]...)
	}
}

func (s *navigationStack) Pop() (Screen, bool) {
	if len(s.entries) == 0 {
		return Screen{}, false
	}
	last := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return last, true
}

func (s *navigationStack) Len() int {
	return len(s.entries)
}
