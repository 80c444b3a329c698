package reactor

import (
	"github.com/golang-io/reactor/internal/queue"
)

// rebuildOnReconnect reconciles the preflight/in-flight queues ahead of a
// fresh Start. Grounded on haka_mqtt.reactor's `__start` rebuild loop
// (original_source): on a clean session every queued record is dropped,
// since the broker will discard its own session state too; on a
// persistent session, surviving QoS-1 (awaiting PUBACK) and QoS-2
// (awaiting PUBREC) publishes are retransmitted with dupe=true, PUBRELs
// already sent are retransmitted unchanged, and everything else
// (SUBSCRIBE/UNSUBSCRIBE acks, PINGREQ, CONNECT) is simply dropped since
// it carries no cross-session meaning (§4.7, SUPPLEMENTED FEATURES).
func (r *Reactor) rebuildOnReconnect() {
	if r.props.CleanSession {
		r.queue.Reset()
		r.releaseAllIDs()
		return
	}

	var rebuilt []*queue.Record
	for _, rec := range r.queue.InflightRecords() {
		switch rec.Kind {
		case queue.KindPublish:
			ticket, ok := rec.Ticket.(*PublishTicket)
			if !ok {
				continue
			}
			if ticket.Status == PublishPuback || ticket.Status == PublishPubrec {
				ticket.Dupe = true
				ticket.Status = PublishPreflight
				rebuilt = append(rebuilt, r.publishRecord(ticket))
			} else {
				r.ids.Release(rec.PacketID)
			}
		case queue.KindPubrel:
			rebuilt = append(rebuilt, rec)
		default:
			if rec.PacketID != 0 {
				r.ids.Release(rec.PacketID)
			}
		}
	}
	// Preflight records that never reached the wire survive only if they
	// are publishes or pubrels (§4.7); anything else queued ahead of a
	// dropped connection (a stray PUBACK/PUBCOMP/PINGREQ/SUBSCRIBE/...)
	// carries no cross-session meaning and is discarded, releasing its
	// packet id if it held one.
	for _, rec := range r.queue.Preflight() {
		switch rec.Kind {
		case queue.KindPublish, queue.KindPubrel:
			rebuilt = append(rebuilt, rec)
		default:
			if rec.PacketID != 0 {
				r.ids.Release(rec.PacketID)
			}
		}
	}
	r.queue.Reset()
	r.queue.ResetPreflight(rebuilt)
}

func (r *Reactor) releaseAllIDs() {
	for id := range r.ids.Set() {
		r.ids.Release(id)
	}
}
