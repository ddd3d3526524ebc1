package monitoring

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordSpawn records a spawn attempt.
func (m *Metrics) RecordSpawn(err error) {
	if m == nil {
		return
	}
	m.Spawns.WithLabelValues(result(err)).Inc()
}

// RecordCommand records a host command and its outcome.
func (m *Metrics) RecordCommand(command string, err error) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, result(err)).Inc()
}

func (m *Metrics) IncSessions() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) DecSessions() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// RecordRead records one chunk read from a pty.
func (m *Metrics) RecordRead(n int) {
	if m == nil {
		return
	}
	m.BytesRead.Add(float64(n))
}

// RecordEvent records an emitted event of kind "data" or "exit".
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.EventsEmitted.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

// RecordWSMessage records a WebSocket message in direction "in" or "out".
func (m *Metrics) RecordWSMessage(direction string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction).Inc()
}

func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// SetSidecarRunning reports whether the sidecar is up.
func (m *Metrics) SetSidecarRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.SidecarRunning.Set(1)
		return
	}
	m.SidecarRunning.Set(0)
}
