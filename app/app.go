// Package app provides application services that orchestrate domain logic:
// route table building, schema mutation, the users collaborator and the
// listener supervisor.
package app

import "errors"

// ErrReservedEntity marks a discovered or requested entity whose name
// collides with the schema-mutation endpoint.
var ErrReservedEntity = errors.New("reserved entity name")

// Metrics receives counters from app services. *metrics.Collector
// satisfies it; a nil Metrics disables recording.
type Metrics interface {
	ObserveReconfiguration(message, outcome string)
	SetLiveListeners(n int)
	ObserveSchemaMutation(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveReconfiguration(string, string) {}
func (noopMetrics) SetLiveListeners(int)                  {}
func (noopMetrics) ObserveSchemaMutation(string)          {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
