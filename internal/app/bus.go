package app

import tea "charm.land/bubbletea/v2"

const defaultBusCapacity = 256

// Bus carries outcomes from background operations to the scheduler. It is
// bounded: Send blocks while the buffer is full.
type Bus struct {
	ch     chan Outcome
	notify chan struct{}
}

func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultBusCapacity
	}
	return &Bus{
		ch:     make(chan Outcome, capacity),
		notify: make(chan struct{}, 1),
	}
}

func (b *Bus) Send(outcome Outcome) {
	b.ch <- outcome
	b.signal()
}

// TrySend drops outcome instead of blocking. It is meant for progress and
// file watch notifications that a later outcome supersedes.
func (b *Bus) TrySend(outcome Outcome) bool {
	select {
	case b.ch <- outcome:
		b.signal()
		return true
	default:
		return false
	}
}

func (b *Bus) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Drain returns every queued outcome in arrival order without blocking.
func (b *Bus) Drain() []Outcome {
	var out []Outcome
	for {
		select {
		case outcome := <-b.ch:
			out = append(out, outcome)
		default:
			return out
		}
	}
}

func (b *Bus) Len() int {
	return len(b.ch)
}

type busReadyMsg struct{}

func waitForBusCmd(b *Bus) tea.Cmd {
	return func() tea.Msg {
		<-b.notify
		return busReadyMsg{}
	}
}
