package observability

import "sync"

// Metrics provides basic in-memory counters for bot activity.
type Metrics struct {
	mu             sync.Mutex
	commandCount   map[string]int64
	commandErrors  map[string]int64
	timersFired    map[string]int64
	timerFailures  int64
	ticketsOpened  int64
	ticketsClosed  int64
	pollIterations int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		commandCount:  make(map[string]int64),
		commandErrors: make(map[string]int64),
		timersFired:   make(map[string]int64),
	}
}

// RecordCommand increments counters for a handled command.
func (m *Metrics) RecordCommand(name string, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandCount[name]++
	if failed {
		m.commandErrors[name]++
	}
}

// RecordTimer increments the fired-timer counter for an action.
func (m *Metrics) RecordTimer(action string, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timersFired[action]++
	if failed {
		m.timerFailures++
	}
}

// RecordTicketOpened increments the opened-ticket counter.
func (m *Metrics) RecordTicketOpened() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticketsOpened++
}

// RecordTicketClosed increments the closed-ticket counter.
func (m *Metrics) RecordTicketClosed() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticketsClosed++
}

// RecordPoll increments the poll-iteration counter.
func (m *Metrics) RecordPoll() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollIterations++
}

// Snapshot returns a copy of all counters for the health endpoint.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{
		"tickets_opened":  m.ticketsOpened,
		"tickets_closed":  m.ticketsClosed,
		"poll_iterations": m.pollIterations,
		"timer_failures":  m.timerFailures,
	}
	for name, n := range m.commandCount {
		out["command_"+name] = n
	}
	for action, n := range m.timersFired {
		out["timer_"+action] = n
	}
	return out
}
