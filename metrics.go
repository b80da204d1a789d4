package snmpengine

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics groups the USM-MIB/engine-level counters RFC 3414 Section 5 and
// RFC 3412 Section 5 define, exported as Prometheus counters so an agent or
// manager process built on this engine can expose them the way
// client_golang-instrumented services in the pack already do.
type metrics struct {
	usmStatsUnsupportedSecLevels prometheus.Counter
	usmStatsNotInTimeWindows     prometheus.Counter
	usmStatsUnknownUserNames     prometheus.Counter
	usmStatsUnknownEngineIDs     prometheus.Counter
	usmStatsWrongDigests         prometheus.Counter
	usmStatsDecryptionErrors     prometheus.Counter

	snmpUnknownContexts prometheus.Counter
	snmpSilentDrops     prometheus.Counter
	snmpProxyDrops      prometheus.Counter

	messagesReceived prometheus.Counter
	messagesSent     prometheus.Counter

	// usmCounts mirrors the usmStats* Prometheus counters above as plain
	// uint32s, since the wire-level Report PDU needs the raw value as a
	// Counter32 varbind (RFC 3414 Section 5), not a Prometheus sample.
	usmCounts [6]uint32
}

// bumpUsmStat increments both the Prometheus counter and the plain
// wire-value counter for kind, returning the new wire value.
func (m *metrics) bumpUsmStat(kind usmReportKind) uint32 {
	switch kind {
	case usmStatsUnsupportedSecLevel:
		m.usmStatsUnsupportedSecLevels.Inc()
	case usmStatsNotInTimeWindow:
		m.usmStatsNotInTimeWindows.Inc()
	case usmStatsUnknownUserName:
		m.usmStatsUnknownUserNames.Inc()
	case usmStatsUnknownEngineId:
		m.usmStatsUnknownEngineIDs.Inc()
	case usmStatsWrongDigest:
		m.usmStatsWrongDigests.Inc()
	case usmStatsDecryptionError:
		m.usmStatsDecryptionErrors.Inc()
	}
	return atomic.AddUint32(&m.usmCounts[kind], 1)
}

func newMetrics(reg prometheus.Registerer) *metrics {
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "snmpengine",
			Name:      name,
			Help:      help,
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}

	return &metrics{
		usmStatsUnsupportedSecLevels: counter("usm_stats_unsupported_sec_levels_total", "usmStatsUnsupportedSecLevels"),
		usmStatsNotInTimeWindows:     counter("usm_stats_not_in_time_windows_total", "usmStatsNotInTimeWindows"),
		usmStatsUnknownUserNames:     counter("usm_stats_unknown_user_names_total", "usmStatsUnknownUserNames"),
		usmStatsUnknownEngineIDs:     counter("usm_stats_unknown_engine_ids_total", "usmStatsUnknownEngineIDs"),
		usmStatsWrongDigests:         counter("usm_stats_wrong_digests_total", "usmStatsWrongDigests"),
		usmStatsDecryptionErrors:     counter("usm_stats_decryption_errors_total", "usmStatsDecryptionErrors"),
		snmpUnknownContexts:          counter("snmp_unknown_contexts_total", "snmpUnknownContexts"),
		snmpSilentDrops:              counter("snmp_silent_drops_total", "snmpSilentDrops"),
		snmpProxyDrops:               counter("snmp_proxy_drops_total", "snmpProxyDrops"),
		messagesReceived:             counter("messages_received_total", "inbound messages accepted by the dispatcher"),
		messagesSent:                 counter("messages_sent_total", "outbound messages emitted by the dispatcher"),
	}
}
