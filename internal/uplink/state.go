// ABOUTME: Connection states and dispatcher events for the agent uplink
// ABOUTME: Events carry the attempt generation that produced them

package uplink

import (
	"net"

	"github.com/2389/coven-control/internal/protocol"
)

// State is the uplink connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Handshaking
	Ready
	Retrying
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case Ready:
		return "ready"
	case Retrying:
		return "retrying"
	default:
		return "unknown"
	}
}

type eventKind int

const (
	evConnected eventKind = iota
	evDataReceived
	evClosed
	evErrored
	evTimerFired
)

func (k eventKind) String() string {
	switch k {
	case evConnected:
		return "connected"
	case evDataReceived:
		return "data"
	case evClosed:
		return "closed"
	case evErrored:
		return "errored"
	case evTimerFired:
		return "timer"
	default:
		return "unknown"
	}
}

// event is one input to the dispatcher.
type event struct {
	kind    eventKind
	attempt uint64
	conn    net.Conn         // evConnected
	msg     protocol.Message // evDataReceived
	err     error            // evErrored
}
