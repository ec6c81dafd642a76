// Package metrics define las métricas Prometheus del servicio.
// Se registran una sola vez en el registry global (mismo esquema que /metrics).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once   sync.Once
	regErr error

	certificatesMinted *prometheus.CounterVec
	vaultEvents        *prometheus.CounterVec
	broadcasts         prometheus.Counter
	corruptLines       *prometheus.CounterVec
	verifications      *prometheus.CounterVec
)

// Register inicializa y registra las métricas del vault. Idempotente.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	once.Do(func() {
		certificatesMinted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_certificates_minted_total",
			Help: "Certificados emitidos (summary escrito) por worker",
		}, []string{"worker"})

		vaultEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_vault_events_total",
			Help: "Eventos de auditoría agregados al log por worker",
		}, []string{"worker"})

		broadcasts = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "custodia_swarm_broadcasts_total",
			Help: "Broadcasts simulados al enjambre de guardianes",
		})

		corruptLines = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_corrupt_log_lines_total",
			Help: "Líneas corruptas salteadas durante scans de logs",
		}, []string{"log"})

		verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_verifications_total",
			Help: "Verificaciones de firma por resultado",
		}, []string{"result"}) // result: valid|invalid

		for _, c := range []prometheus.Collector{
			certificatesMinted, vaultEvents, broadcasts, corruptLines, verifications,
		} {
			if err := reg.Register(c); err != nil {
				// AlreadyRegistered: otro init ganó la carrera, seguimos con el existente
				if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
					continue
				}
				regErr = err
				return
			}
		}
	})
	return regErr
}

// Los helpers son nil-safe: si Register no corrió (tests unitarios), no-op.

func IncMinted(worker string) {
	if certificatesMinted != nil {
		certificatesMinted.WithLabelValues(worker).Inc()
	}
}

func IncVaultEvent(worker string) {
	if vaultEvents != nil {
		vaultEvents.WithLabelValues(worker).Inc()
	}
}

func IncBroadcast() {
	if broadcasts != nil {
		broadcasts.Inc()
	}
}

func IncCorruptLine(log string) {
	if corruptLines != nil {
		corruptLines.WithLabelValues(log).Inc()
	}
}

func IncVerification(valid bool) {
	if verifications == nil {
		return
	}
	if valid {
		verifications.WithLabelValues("valid").Inc()
	} else {
		verifications.WithLabelValues("invalid").Inc()
	}
}
