// Package queue implements the reactor's preflight/in-flight record
// containers (spec.md §4.4).
//
// Grounded on haka_mqtt.reactor's `self.__preflight_queue` (a plain list)
// and `self.__inflight_queue` (a Python OrderedDict keyed by packet id).
// Go maps have no deterministic iteration order, so the in-flight side is
// a slice-backed ordered map: an insertion-order slice of ids plus a
// lookup map, which reproduces OrderedDict's two guarantees (O(1) lookup
// by key, iteration in insertion order) that invariant 9 (§3) depends on.
package queue

// Kind tags what a Record represents, mirroring the MQTT control packet
// types the queue manager must order (§4.4).
type Kind int

const (
	KindConnect Kind = iota
	KindPublish
	KindPubrel
	KindPuback
	KindPubrec
	KindPubcomp
	KindSubscribe
	KindUnsubscribe
	KindUnsuback
	KindPingreq
	KindDisconnect
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "CONNECT"
	case KindPublish:
		return "PUBLISH"
	case KindPubrel:
		return "PUBREL"
	case KindPuback:
		return "PUBACK"
	case KindPubrec:
		return "PUBREC"
	case KindPubcomp:
		return "PUBCOMP"
	case KindSubscribe:
		return "SUBSCRIBE"
	case KindUnsubscribe:
		return "UNSUBSCRIBE"
	case KindUnsuback:
		return "UNSUBACK"
	case KindPingreq:
		return "PINGREQ"
	case KindDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// Record is one queued unit of work: a packet yet to be written
// (preflight) or awaiting acknowledgement (in-flight). PacketID is 0 for
// records that carry none (PINGREQ, DISCONNECT, QoS-0 PUBLISH). Ticket is
// an opaque back-reference to the reactor-owned ticket object, if any;
// the queue package never dereferences it.
type Record struct {
	Kind     Kind
	PacketID uint16
	Dupe     bool
	Ticket   any
	Encode   func() ([]byte, error)
}

// Queue holds the preflight sequence and the in-flight ordered map.
type Queue struct {
	preflight []*Record

	inflightOrder []uint16
	inflight      map[uint16]*Record
}

func New() *Queue {
	return &Queue{inflight: make(map[uint16]*Record)}
}

// AppendPreflight adds r to the tail of preflight — the default for
// newly submitted SUBSCRIBE/UNSUBSCRIBE/PUBLISH and for receive-path
// PUBACK/PUBCOMP (§4.4).
func (q *Queue) AppendPreflight(r *Record) {
	q.preflight = append(q.preflight, r)
}

// PushFrontPreflight puts r at the head of preflight. Used exactly once,
// for a CONNECT record emitted during reconnect rebuild ahead of any
// surviving publishes (§4.7, SUPPLEMENTED FEATURES).
func (q *Queue) PushFrontPreflight(r *Record) {
	q.preflight = append([]*Record{r}, q.preflight...)
}

// InsertPreflightAt inserts r at index idx, used for PUBREL insertion
// immediately after a PUBREC is accepted, at the preflight length
// captured before any host callback runs (§4.4, §4.6).
func (q *Queue) InsertPreflightAt(idx int, r *Record) {
	if idx >= len(q.preflight) {
		q.preflight = append(q.preflight, r)
		return
	}
	q.preflight = append(q.preflight, nil)
	copy(q.preflight[idx+1:], q.preflight[idx:])
	q.preflight[idx] = r
}

// PreflightLen reports the current preflight length — callers capture
// this before invoking a host callback to compute an insertion index
// that is stable across re-entrant submissions (§4.4).
func (q *Queue) PreflightLen() int {
	return len(q.preflight)
}

// Preflight returns the live preflight slice in order. Callers must not
// retain it across a mutating call.
func (q *Queue) Preflight() []*Record {
	return q.preflight
}

// DropPreflightPrefix removes the first n preflight records — used after
// a launch pass has fully encoded and flushed them onto the wire.
func (q *Queue) DropPreflightPrefix(n int) {
	q.preflight = append([]*Record(nil), q.preflight[n:]...)
}

// ResetPreflight replaces the whole preflight sequence, used by the
// reconnect rebuild (§4.7).
func (q *Queue) ResetPreflight(records []*Record) {
	q.preflight = records
}

// MoveToInflight records r as in-flight, appended after any existing
// in-flight records (preserving arrival/launch order, invariant 9).
func (q *Queue) MoveToInflight(r *Record) {
	q.inflightOrder = append(q.inflightOrder, r.PacketID)
	q.inflight[r.PacketID] = r
}

// Inflight returns the record for id, if any.
func (q *Queue) Inflight(id uint16) (*Record, bool) {
	r, ok := q.inflight[id]
	return r, ok
}

// InflightHead returns the oldest in-flight record of the given kind —
// the record that any accepted ack for that kind must match, per the
// head-of-line ordering invariant 9 (§3) and [MQTT-4.6.0-2,3,4].
func (q *Queue) InflightHead(kind Kind) (*Record, bool) {
	for _, id := range q.inflightOrder {
		r, ok := q.inflight[id]
		if ok && r.Kind == kind {
			return r, true
		}
	}
	return nil, false
}

// RemoveInflight drops id from the in-flight map and its position in the
// order slice.
func (q *Queue) RemoveInflight(id uint16) {
	delete(q.inflight, id)
	for i, v := range q.inflightOrder {
		if v == id {
			q.inflightOrder = append(q.inflightOrder[:i], q.inflightOrder[i+1:]...)
			return
		}
	}
}

// InflightRecords returns all in-flight records in insertion order.
func (q *Queue) InflightRecords() []*Record {
	out := make([]*Record, 0, len(q.inflightOrder))
	for _, id := range q.inflightOrder {
		if r, ok := q.inflight[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (q *Queue) InflightLen() int {
	return len(q.inflightOrder)
}

// Reset clears both containers — used by terminate (§4.6) and by the
// clean-session branch of reconnect rebuild (§4.7).
func (q *Queue) Reset() {
	q.preflight = nil
	q.inflightOrder = nil
	q.inflight = make(map[uint16]*Record)
}
