package modules

import "github.com/kryptokrona/kryptokrona-walletcore-go/types"

// EventKind enumerates the kinds of event an EventSink can receive. The
// wallet core in modules/wallet emits the transaction, incoming, outgoing
// and fusion kinds; EventSync and EventDesync are declared here but nothing
// in modules/wallet emits them. Delivery is synchronous, on the core's
// single logical executor, and always happens strictly after the state it
// reports has been committed.
type EventKind string

const (
	EventTransaction EventKind = "transaction"
	EventIncoming    EventKind = "incoming"
	EventOutgoing    EventKind = "outgoing"
	EventFusion      EventKind = "fusion"
	EventSync        EventKind = "sync"
	EventDesync      EventKind = "desync"
)

// Event is the payload delivered to an EventSink.
type Event struct {
	Kind        EventKind
	Transaction *types.Transaction // set for Transaction/Incoming/Outgoing/Fusion
	Height      uint64             // set for Sync/Desync
}

// EventSink receives notifications of wallet-relevant state changes. It is
// the only channel by which the core reports progress and transaction
// activity; logging/metrics implementations are external collaborators.
type EventSink interface {
	Notify(Event)
}

// NopEventSink discards every event. Useful as a default when the caller
// has not wired a real sink yet.
type NopEventSink struct{}

// Notify implements EventSink.
func (NopEventSink) Notify(Event) {}
