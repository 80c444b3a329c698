package reactor

// PublishStatus tracks a publish ticket's progress through the QoS
// handshake (§4.3, §4.4).
type PublishStatus int

const (
	PublishPreflight PublishStatus = iota // queued, not yet written to the wire
	PublishPuback                         // QoS 1: PUBLISH sent, awaiting PUBACK
	PublishPubrec                         // QoS 2: PUBLISH sent, awaiting PUBREC (or PUBREL sent, awaiting PUBCOMP)
	PublishDone                           // acknowledgement complete (or QoS 0, sent)
)

func (s PublishStatus) String() string {
	switch s {
	case PublishPreflight:
		return "preflight"
	case PublishPuback:
		return "puback"
	case PublishPubrec:
		return "pubrec"
	case PublishDone:
		return "done"
	default:
		return "unknown"
	}
}

// PublishTicket is the host-facing handle for one Publish call (§4.3).
type PublishTicket struct {
	PacketID uint16
	Topic    string
	Payload  []byte
	QoS      uint8
	Retain   bool
	Dupe     bool
	Status   PublishStatus
}

// SubscribeStatus tracks a subscribe ticket (§4.3).
type SubscribeStatus int

const (
	SubscribePreflight SubscribeStatus = iota
	SubscribeAck
	SubscribeDone
)

func (s SubscribeStatus) String() string {
	switch s {
	case SubscribePreflight:
		return "preflight"
	case SubscribeAck:
		return "ack"
	case SubscribeDone:
		return "done"
	default:
		return "unknown"
	}
}

// Subscription pairs a topic filter with the QoS the caller requested.
type Subscription struct {
	TopicFilter string
	MaximumQoS  uint8
}

// SubscribeTicket is the host-facing handle for one Subscribe call.
type SubscribeTicket struct {
	PacketID      uint16
	Subscriptions []Subscription
	GrantedCodes  []uint8 // populated once the SUBACK arrives, one per subscription
	Status        SubscribeStatus
}

// UnsubscribeStatus tracks an unsubscribe ticket (§4.3).
type UnsubscribeStatus int

const (
	UnsubscribePreflight UnsubscribeStatus = iota
	UnsubscribeAck
	UnsubscribeDone
)

func (s UnsubscribeStatus) String() string {
	switch s {
	case UnsubscribePreflight:
		return "preflight"
	case UnsubscribeAck:
		return "ack"
	case UnsubscribeDone:
		return "done"
	default:
		return "unknown"
	}
}

// UnsubscribeTicket is the host-facing handle for one Unsubscribe call.
type UnsubscribeTicket struct {
	PacketID     uint16
	TopicFilters []string
	Status       UnsubscribeStatus
}
