package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of a program run.
const (
	OutcomeFinished = "finished"
	OutcomeFailed   = "failed"
	OutcomeStopped  = "stopped"
)

// Metrics holds the prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	programStarts   *prometheus.CounterVec
	programEnds     *prometheus.CounterVec
	stateEntries    *prometheus.CounterVec
	dialogsShown    prometheus.Counter
	dialogsAnswered *prometheus.CounterVec
	pendingDialogs  prometheus.Gauge
	clients         prometheus.Gauge
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	protocolErrors  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		programStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchbot_program_starts_total",
			Help: "Total number of program starts",
		}, []string{"program"}),
		programEnds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchbot_program_ends_total",
			Help: "Total number of program runs that ended, by outcome",
		}, []string{"program", "outcome"}),
		stateEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchbot_state_entries_total",
			Help: "Total number of state executions",
		}, []string{"program", "state"}),
		dialogsShown: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchbot_dialogs_shown_total",
			Help: "Total number of dialogs presented to clients",
		}),
		dialogsAnswered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchbot_dialogs_answered_total",
			Help: "Total number of dialogs answered by an operator",
		}, []string{"program"}),
		pendingDialogs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "switchbot_dialogs_pending",
			Help: "Dialogs currently waiting for an answer",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "switchbot_connected_clients",
			Help: "Currently connected clients",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "switchbot_controller_commands_total",
			Help: "Commands sent to the controller, by result",
		}, []string{"kind", "result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "switchbot_controller_command_duration_seconds",
			Help:    "Round trip time of controller commands",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"kind"}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "switchbot_protocol_errors_total",
			Help: "Malformed client messages",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.programStarts, m.programEnds, m.stateEntries,
			m.dialogsShown, m.dialogsAnswered, m.pendingDialogs,
			m.clients, m.commands, m.commandDuration, m.protocolErrors,
		)
	}
	return m
}

// ProgramStarted counts a start.
func (m *Metrics) ProgramStarted(program string) {
	if m == nil {
		return
	}
	m.programStarts.WithLabelValues(program).Inc()
}

// ProgramEnded counts the end of a run.
func (m *Metrics) ProgramEnded(program, outcome string) {
	if m == nil {
		return
	}
	m.programEnds.WithLabelValues(program, outcome).Inc()
}

// StateEntered counts a state execution.
func (m *Metrics) StateEntered(program, state string) {
	if m == nil {
		return
	}
	m.stateEntries.WithLabelValues(program, state).Inc()
}

// DialogShown marks a dialog as pending.
func (m *Metrics) DialogShown() {
	if m == nil {
		return
	}
	m.dialogsShown.Inc()
	m.pendingDialogs.Inc()
}

// DialogClosed marks the pending dialog as gone.
func (m *Metrics) DialogClosed() {
	if m == nil {
		return
	}
	m.pendingDialogs.Dec()
}

// DialogAnswered counts an answer delivered to a program.
func (m *Metrics) DialogAnswered(program string) {
	if m == nil {
		return
	}
	m.dialogsAnswered.WithLabelValues(program).Inc()
}

// ClientConnected tracks a new client.
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.clients.Inc()
}

// ClientDisconnected tracks a client leaving.
func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.clients.Dec()
}

// CommandSent records a controller command of kind ("button" or "joystick").
func (m *Metrics) CommandSent(kind string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(kind, result).Inc()
	m.commandDuration.WithLabelValues(kind).Observe(seconds)
}

// ProtocolError counts a malformed client message.
func (m *Metrics) ProtocolError() {
	if m == nil {
		return
	}
	m.protocolErrors.Inc()
}
