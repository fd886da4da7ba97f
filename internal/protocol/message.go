package protocol

import "fmt"

// CommandKind tags the request type carried by a Command.
type CommandKind int

const (
	// CmdSendKey presses a remote key.
	CmdSendKey CommandKind = iota

	// CmdSetVolume sets the absolute volume level (0-100).
	CmdSetVolume

	// CmdMute sets the mute state.
	CmdMute

	// CmdLaunchApp launches an application by identifier.
	CmdLaunchApp

	// CmdSwitchInput switches the active input source.
	CmdSwitchInput
)

// String returns the command kind name.
func (k CommandKind) String() string {
	switch k {
	case CmdSendKey:
		return "sendkey"
	case CmdSetVolume:
		return "changevolume"
	case CmdMute:
		return "changemute"
	case CmdLaunchApp:
		return "launchapp"
	case CmdSwitchInput:
		return "changesource"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is one high-level request to the TV. CorrelationID ties the
// eventual device reply back to this request; the engine assigns it
// before encoding.
type Command struct {
	Kind          CommandKind
	CorrelationID string

	// Key is the remote key name for CmdSendKey.
	Key string

	// Volume is the absolute level for CmdSetVolume (0-100).
	Volume int

	// Muted is the target mute state for CmdMute.
	Muted bool

	// AppID is the application identifier for CmdLaunchApp.
	AppID string

	// SourceID is the input source name for CmdSwitchInput.
	SourceID string
}

// WireMessage is one encoded topic/payload pair ready for publishing.
type WireMessage struct {
	Topic   string
	Payload []byte
}

// EventKind tags a decoded inbound message.
type EventKind int

const (
	// EventCommandResult is a reply correlated to an outstanding command.
	EventCommandResult EventKind = iota

	// EventStateBroadcast is an unsolicited device state update.
	EventStateBroadcast

	// EventUnrecognized is an inbound message the codec cannot classify.
	EventUnrecognized
)

// CommandResult is the decoded outcome of one command.
type CommandResult struct {
	// CorrelationID matches the Command that caused this reply. Empty for
	// legacy firmware, which has no sequence field; the session layer
	// matches legacy replies to the single outstanding command instead.
	CorrelationID string

	// Success reports whether the device accepted the command.
	Success bool

	// Detail is the device's result string, if any.
	Detail string
}

// StateUpdate is a partial device state carried by a broadcast. Nil fields
// were absent from the broadcast and must not disturb cached state.
type StateUpdate struct {
	Volume *int
	Muted  *bool
	Power  *string
	Input  *string
}

// DecodedEvent is the result of decoding one inbound topic/payload pair.
// Exactly one of Result and State is set, matching Kind.
type DecodedEvent struct {
	Kind   EventKind
	Result *CommandResult
	State  *StateUpdate
}
