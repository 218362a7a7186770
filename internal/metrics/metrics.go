// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the bridge collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Calls          *prometheus.CounterVec
	Events         *prometheus.CounterVec
	Sessions       prometheus.Gauge
	TransportDials *prometheus.CounterVec
	TransportLoss  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stream_bridge",
				Subsystem: "methods",
				Name:      "calls_total",
				Help:      "Method channel calls by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stream_bridge",
				Subsystem: "listeners",
				Name:      "events_total",
				Help:      "Listener channel events by method",
			},
			[]string{"method"},
		),
		Sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "stream_bridge",
				Subsystem: "channels",
				Name:      "active",
				Help:      "Open channel sessions",
			},
		),
		TransportDials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stream_bridge",
				Subsystem: "transports",
				Name:      "connects_total",
				Help:      "Transport connection attempts by transport and result",
			},
			[]string{"transport", "result"},
		),
		TransportLoss: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stream_bridge",
				Subsystem: "transports",
				Name:      "connection_losses_total",
				Help:      "Broker connections lost after a successful connect",
			},
			[]string{"transport"},
		),
	}
	reg.MustRegister(m.Calls, m.Events, m.Sessions, m.TransportDials, m.TransportLoss)
	return m
}

func (m *Metrics) RecordCall(method, outcome string) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) RecordEvent(method string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(method).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.Sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.Sessions.Dec()
}

func (m *Metrics) RecordTransportConnect(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TransportDials.WithLabelValues(name, result).Inc()
}

func (m *Metrics) RecordTransportLost(name string) {
	if m == nil {
		return
	}
	m.TransportLoss.WithLabelValues(name).Inc()
}
