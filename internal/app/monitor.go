package app

// WarningOutcome describes the effect of one attention-lost signal.
type WarningOutcome struct {
	Count   int  `json:"count"`
	Max     int  `json:"max"`
	Counted bool `json:"counted"`
	Tripped bool `json:"tripped"`
}

// Monitor counts focus-loss transitions and trips once the limit is reached.
type Monitor struct {
	max      int
	count    int
	away     bool
	tripped  bool
	detached bool
}

func NewMonitor(max int) *Monitor {
	return &Monitor{max: max}
}

// AttentionLost registers a focused->unfocused transition. Repeated signals
// without an AttentionRegained in between belong to the same transition.
func (m *Monitor) AttentionLost() WarningOutcome {
	out := WarningOutcome{Count: m.count, Max: m.max}
	if m.detached || m.tripped || m.away {
		return out
	}
	m.away = true
	m.count++
	out.Count = m.count
	out.Counted = true
	if m.count >= m.max {
		m.tripped = true
		out.Tripped = true
	}
	return out
}

// AttentionRegained re-arms the monitor for the next transition.
func (m *Monitor) AttentionRegained() {
	m.away = false
}

// Detach stops the monitor from counting any further events.
func (m *Monitor) Detach() {
	m.detached = true
}

func (m *Monitor) Count() int {
	return m.count
}
