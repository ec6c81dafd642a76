// Package vault implementa el puente de auditoría del vault: logs de
// eventos append-only por worker, summaries last-write-wins por serial,
// y el bookkeeping de broadcast/consenso al "enjambre" de guardianes.
//
// El consenso del enjambre es SIMULADO: los guardianes son identificadores
// fijos y el ACK es unánime por construcción. La interfaz queda estable
// para enchufar un protocolo real más adelante; nada acá provee acuerdo
// distribuido de verdad.
//
// Layout en disco bajo root:
//
//	events/<worker_id>_events.jsonl
//	events/swarm_broadcasts.jsonl
//	events/swarm_consensus.jsonl
//	certificates/issued/<serial>_summary.json
package vault
