package protocol

import (
	"fmt"
	"strings"
)

// Topic families shared by all dialects. Legacy firmware uses the same
// tree with a "remote" root segment instead of "remoteapp".
const (
	modernTopicRoot = "remoteapp"
	legacyTopicRoot = "remote"

	serviceRemote   = "remote_service"
	servicePlatform = "platform_service"
	serviceUI       = "ui_service"
)

// topicRoot returns the first topic segment for the dialect.
func topicRoot(v Variant) string {
	if v == VariantLegacy {
		return legacyTopicRoot
	}
	return modernTopicRoot
}

// commandTopic builds the TV-side action topic for one service/action pair.
//
//	/<root>/tv/<service>/<clientID>/actions/<action>
func commandTopic(v Variant, service, clientID, action string) string {
	return fmt.Sprintf("/%s/tv/%s/%s/actions/%s", topicRoot(v), service, clientID, action)
}

// ReplyTopicFilter is the subscription filter covering every per-client
// reply the TV can send during a session.
func ReplyTopicFilter(v Variant, clientID string) string {
	return fmt.Sprintf("/%s/mobile/%s/#", topicRoot(v), clientID)
}

// BroadcastTopicFilter is the subscription filter covering the shared
// broadcast tree carrying unsolicited state updates.
func BroadcastTopicFilter(v Variant) string {
	return fmt.Sprintf("/%s/mobile/broadcast/#", topicRoot(v))
}

// Broadcast topic suffixes the decoder recognizes.
const (
	broadcastVolumeSuffix = "/platform_service/actions/volumechange"
	broadcastStateSuffix  = "/ui_service/state"
)

// isBroadcastTopic reports whether topic lives on the shared broadcast tree.
func isBroadcastTopic(v Variant, topic string) bool {
	return strings.HasPrefix(topic, fmt.Sprintf("/%s/mobile/broadcast/", topicRoot(v)))
}

// isReplyTopic reports whether topic is a per-client data reply.
func isReplyTopic(v Variant, clientID, topic string) bool {
	return strings.HasPrefix(topic, fmt.Sprintf("/%s/mobile/%s/", topicRoot(v), clientID))
}

// Pairing action and reply topics.

// AuthenticationTopic is where the PIN (and token, for re-authentication)
// is published during pairing.
func AuthenticationTopic(v Variant, clientID string) string {
	return commandTopic(v, serviceUI, clientID, "authenticationcode")
}

// AuthenticationReplyTopic carries the device's accept/reject answer.
func AuthenticationReplyTopic(v Variant, clientID string) string {
	return fmt.Sprintf("/%s/mobile/%s/ui_service/data/authentication", topicRoot(v), clientID)
}

// TokenIssuanceTopic carries the signed access token on modern firmware.
func TokenIssuanceTopic(v Variant, clientID string) string {
	return fmt.Sprintf("/%s/mobile/%s/platform_service/data/tokenissuance", topicRoot(v), clientID)
}

// GetStateTopic is the session-initiation kick published right after
// connecting; the TV answers with its current UI state.
func GetStateTopic(v Variant, clientID string) string {
	return commandTopic(v, serviceUI, clientID, "gettvstate")
}
