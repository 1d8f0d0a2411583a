package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives events worth counting. Handlers only see this interface.
type Recorder interface {
	GroupsGenerated(strategy string, students, groups int)
	StudentPicked(newRound bool)
	RosterImported(count int, err error)
}

// NopRecorder discards every event.
type NopRecorder struct{}

var _ Recorder = NopRecorder{}

func (NopRecorder) GroupsGenerated(string, int, int) {}
func (NopRecorder) StudentPicked(bool)               {}
func (NopRecorder) RosterImported(int, error)        {}

// Collector implements Recorder backed by Prometheus.
type Collector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	generations     *prometheus.CounterVec
	groupedStudents prometheus.Histogram
	groupCount      prometheus.Histogram
	picks           prometheus.Counter
	rounds          prometheus.Counter
	imports         *prometheus.CounterVec
	importedRows    prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a collector registered on reg
// (prometheus.DefaultRegisterer if nil) under namespace ("classgroups" if empty).
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "classgroups"
	}
	return &Collector{reg: reg, namespace: namespace}
}

func (c *Collector) ensureRegistered() {
	c.once.Do(func() {
		c.generations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Subsystem: "grouping",
			Name:      "generations_total",
			Help:      "Group generations by leftover strategy.",
		}, []string{"strategy"})
		c.groupedStudents = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: c.namespace,
			Subsystem: "grouping",
			Name:      "students",
			Help:      "Present students per generation.",
			Buckets:   []float64{5, 10, 20, 30, 40, 60, 100},
		})
		c.groupCount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: c.namespace,
			Subsystem: "grouping",
			Name:      "groups",
			Help:      "Groups produced per generation.",
			Buckets:   []float64{1, 2, 4, 6, 8, 12, 20},
		})
		c.picks = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Subsystem: "picker",
			Name:      "picks_total",
			Help:      "Students picked.",
		})
		c.rounds = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Subsystem: "picker",
			Name:      "rounds_total",
			Help:      "Picker rounds started, including the first after each generation.",
		})
		c.imports = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: c.namespace,
			Subsystem: "roster",
			Name:      "imports_total",
			Help:      "Roster imports by result.",
		}, []string{"result"})
		c.importedRows = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Subsystem: "roster",
			Name:      "imported_students_total",
			Help:      "Students added through roster imports.",
		})

		c.reg.MustRegister(c.generations, c.groupedStudents, c.groupCount,
			c.picks, c.rounds, c.imports, c.importedRows)
	})
}

// GroupsGenerated counts one generation.
func (c *Collector) GroupsGenerated(strategy string, students, groups int) {
	c.ensureRegistered()
	c.generations.WithLabelValues(strategy).Inc()
	c.groupedStudents.Observe(float64(students))
	c.groupCount.Observe(float64(groups))
}

// StudentPicked counts one pick and, when it opened a round, the round.
func (c *Collector) StudentPicked(newRound bool) {
	c.ensureRegistered()
	c.picks.Inc()
	if newRound {
		c.rounds.Inc()
	}
}

// RosterImported counts one import attempt.
func (c *Collector) RosterImported(count int, err error) {
	c.ensureRegistered()
	if err != nil {
		c.imports.WithLabelValues("error").Inc()
		return
	}
	c.imports.WithLabelValues("ok").Inc()
	c.importedRows.Add(float64(count))
}
