package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedCommand is returned when a key, application or source name
// is not part of the closed vocabulary. The check happens before any
// network I/O so nothing speculative ever reaches the device.
var ErrUnsupportedCommand = errors.New("unsupported command")

// dialect bundles the per-variant payload behavior. Topic layout is shared
// (modulo the root segment) so only payload shapes live here.
type dialect struct {
	encodePayload func(cmd Command) ([]byte, error)
	decodeReply   func(payload []byte) *CommandResult
}

// dialects is the variant-to-behavior dispatch table. Selected once per
// session; keeps dialect branching out of the call sites.
var dialects = map[Variant]dialect{
	VariantLegacy: {encodePayload: encodeTextPayload, decodeReply: decodeTextReply},
	VariantMiddle: {encodePayload: encodeJSONPayload, decodeReply: decodeJSONReply},
	VariantModern: {encodePayload: encodeJSONPayload, decodeReply: decodeJSONReply},
}

// Encode translates a high-level command into the topic/payload pair the
// dialect expects. Unknown key/app/source names fail with
// ErrUnsupportedCommand; out-of-range volume levels fail before I/O too.
func Encode(cmd Command, v Variant, clientID string) (WireMessage, error) {
	d, ok := dialects[v]
	if !ok {
		return WireMessage{}, fmt.Errorf("cannot encode for variant %s", v)
	}

	if err := validateCommand(cmd); err != nil {
		return WireMessage{}, err
	}

	payload, err := d.encodePayload(cmd)
	if err != nil {
		return WireMessage{}, err
	}

	return WireMessage{
		Topic:   commandTopic(v, commandService(cmd.Kind), clientID, cmd.Kind.String()),
		Payload: payload,
	}, nil
}

// commandService maps a command kind to the TV service that owns it.
func commandService(k CommandKind) string {
	switch k {
	case CmdSendKey:
		return serviceRemote
	case CmdSetVolume, CmdMute:
		return servicePlatform
	default:
		return serviceUI
	}
}

func validateCommand(cmd Command) error {
	switch cmd.Kind {
	case CmdSendKey:
		if !IsValidKey(cmd.Key) {
			return fmt.Errorf("%w: unknown key %q", ErrUnsupportedCommand, cmd.Key)
		}
	case CmdSetVolume:
		if cmd.Volume < 0 || cmd.Volume > 100 {
			return fmt.Errorf("%w: volume %d out of range 0-100", ErrUnsupportedCommand, cmd.Volume)
		}
	case CmdLaunchApp:
		if _, ok := LookupApp(cmd.AppID); !ok {
			return fmt.Errorf("%w: unknown app %q", ErrUnsupportedCommand, cmd.AppID)
		}
	case CmdSwitchInput:
		if _, ok := LookupSource(cmd.SourceID); !ok {
			return fmt.Errorf("%w: unknown source %q", ErrUnsupportedCommand, cmd.SourceID)
		}
	}
	return nil
}

// encodeTextPayload builds the bare-text payloads legacy firmware expects.
// Legacy has no sequence field; replies are matched to the single
// outstanding command by the session layer.
func encodeTextPayload(cmd Command) ([]byte, error) {
	switch cmd.Kind {
	case CmdSendKey:
		return []byte(cmd.Key), nil
	case CmdSetVolume:
		return []byte(strconv.Itoa(cmd.Volume)), nil
	case CmdMute:
		if cmd.Muted {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	case CmdLaunchApp:
		app, _ := LookupApp(cmd.AppID)
		return []byte(app.Name), nil
	case CmdSwitchInput:
		src, _ := LookupSource(cmd.SourceID)
		return []byte(src.ID), nil
	default:
		return nil, fmt.Errorf("cannot encode command kind %s", cmd.Kind)
	}
}

// jsonCommandBody is the envelope middle and modern firmware expect. Only
// the fields relevant to the command kind are populated.
type jsonCommandBody struct {
	Seq       string `json:"seq"`
	Key       string `json:"key,omitempty"`
	Value     *int   `json:"value,omitempty"`
	Mute      *bool  `json:"mute,omitempty"`
	Name      string `json:"name,omitempty"`
	URL       string `json:"url,omitempty"`
	URLType   *int   `json:"urlType,omitempty"`
	StoreType *int   `json:"storeType,omitempty"`
	SourceID  string `json:"sourceid,omitempty"`
}

func encodeJSONPayload(cmd Command) ([]byte, error) {
	body := jsonCommandBody{Seq: cmd.CorrelationID}

	switch cmd.Kind {
	case CmdSendKey:
		body.Key = cmd.Key
	case CmdSetVolume:
		v := cmd.Volume
		body.Value = &v
	case CmdMute:
		m := cmd.Muted
		body.Mute = &m
	case CmdLaunchApp:
		app, _ := LookupApp(cmd.AppID)
		body.Name = app.Name
		body.URL = app.URL
		urlType, storeType := app.URLType, app.StoreType
		body.URLType = &urlType
		body.StoreType = &storeType
	case CmdSwitchInput:
		src, _ := LookupSource(cmd.SourceID)
		body.SourceID = src.ID
	default:
		return nil, fmt.Errorf("cannot encode command kind %s", cmd.Kind)
	}

	return json.Marshal(body)
}

// Decode classifies one inbound topic/payload pair into a command reply,
// a state broadcast, or Unrecognized. It never fails: malformed inbound
// traffic becomes Unrecognized rather than an error, because the read
// loop must keep draining the stream regardless.
func Decode(v Variant, clientID, topic string, payload []byte) DecodedEvent {
	switch {
	case isBroadcastTopic(v, topic):
		if update := decodeBroadcast(topic, payload); update != nil {
			return DecodedEvent{Kind: EventStateBroadcast, State: update}
		}
	case isReplyTopic(v, clientID, topic):
		d, ok := dialects[v]
		if !ok {
			break
		}
		if result := d.decodeReply(payload); result != nil {
			return DecodedEvent{Kind: EventCommandResult, Result: result}
		}
	}
	return DecodedEvent{Kind: EventUnrecognized}
}

// jsonReplyBody mirrors the TV's data reply envelope.
type jsonReplyBody struct {
	Seq    string `json:"seq"`
	Result *int   `json:"result"`
	Detail string `json:"detail"`
}

func decodeJSONReply(payload []byte) *CommandResult {
	var body jsonReplyBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil
	}
	if body.Result == nil {
		return nil
	}
	return &CommandResult{
		CorrelationID: body.Seq,
		Success:       *body.Result == 1,
		Detail:        body.Detail,
	}
}

// decodeTextReply handles legacy "success"/"fail" replies.
func decodeTextReply(payload []byte) *CommandResult {
	switch strings.TrimSpace(string(payload)) {
	case "success":
		return &CommandResult{Success: true}
	case "fail", "failed":
		return &CommandResult{Success: false}
	default:
		return nil
	}
}

// volumeBroadcastBody is the JSON carried on the volumechange broadcast.
type volumeBroadcastBody struct {
	VolumeType  int   `json:"volume_type"`
	VolumeValue *int  `json:"volume_value"`
	Mute        *bool `json:"mute"`
}

// uiStateBroadcastBody is the JSON carried on the ui_service state broadcast.
type uiStateBroadcastBody struct {
	StateType string `json:"statetype"`
	SourceID  string `json:"sourceid"`
}

func decodeBroadcast(topic string, payload []byte) *StateUpdate {
	switch {
	case strings.HasSuffix(topic, broadcastVolumeSuffix):
		var body volumeBroadcastBody
		if err := json.Unmarshal(payload, &body); err == nil {
			if body.VolumeValue == nil && body.Mute == nil {
				return nil
			}
			return &StateUpdate{Volume: body.VolumeValue, Muted: body.Mute}
		}
		// Legacy firmware broadcasts the bare level as text.
		if level, err := strconv.Atoi(strings.TrimSpace(string(payload))); err == nil {
			return &StateUpdate{Volume: &level}
		}
		return nil

	case strings.HasSuffix(topic, broadcastStateSuffix):
		var body uiStateBroadcastBody
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil
		}
		switch body.StateType {
		case "sourceswitch":
			if body.SourceID == "" {
				return nil
			}
			input := body.SourceID
			return &StateUpdate{Input: &input}
		case "fake_sleep", "sleep":
			power := "standby"
			return &StateUpdate{Power: &power}
		case "livetv", "app", "remote_launcher":
			power := "on"
			return &StateUpdate{Power: &power}
		}
		return nil
	}
	return nil
}
