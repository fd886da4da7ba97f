package credentials

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

// Constants from the protocol analysis of the Vidaa mobile application's
// credential library. They are opaque inputs to the derivation, not values
// this client chooses.
const (
	// saltPattern seeds the race hash that goes into the client id.
	saltPattern = "38D65DC30F45109A369A86FCE866A85B"

	// timeXORConstant scrambles the timestamp in middle/modern usernames.
	timeXORConstant = 0x569814772b03a968

	// valueSuffixModern feeds the password hash on modern firmware.
	valueSuffixModern = "jhkbvcrvzfdasgioupknewm"

	// valueSuffixLegacy feeds the password hash on legacy and middle firmware.
	valueSuffixLegacy = "dgbtrevcsaqwmloiujhpnkf"

	// Static fallback account accepted by some very old models.
	staticUsername = "hisenseservice"
	staticPassword = "multimqttservice"

	defaultBrand     = "his"
	defaultOperation = "vidaacommon"
)

// BrokerCredentials is one derived MQTT account for a single connection
// attempt. The values are time-sensitive; derive fresh ones per connect.
type BrokerCredentials struct {
	ClientID string
	Username string
	Password string
}

// Derive computes the broker credentials for a device, using the current
// time and the dialect's recipe.
func Derive(deviceID string, v protocol.Variant) BrokerCredentials {
	return DeriveAt(deviceID, v, time.Now().Unix())
}

// DeriveAt computes broker credentials for a fixed Unix timestamp in
// seconds. Split out so the derivation is testable against captured
// fixtures.
func DeriveAt(deviceID string, v protocol.Variant, timestamp int64) BrokerCredentials {
	uuid := canonicalDeviceID(deviceID)

	// Race hash binds the client id to the device identifier. The hash is
	// case-sensitive, so the identifier keeps its original case.
	race := upperMD5(saltPattern + "$" + uuid)[:6]
	clientID := fmt.Sprintf("%s$%s$%s_%s_001", uuid, defaultBrand, race, defaultOperation)

	// Legacy firmware takes the plain timestamp; newer firmware XORs it.
	var username string
	if v == protocol.VariantLegacy {
		username = fmt.Sprintf("%s$%d", defaultBrand, timestamp)
	} else {
		username = fmt.Sprintf("%s$%d", defaultBrand, timestamp^timeXORConstant)
	}

	suffix := valueSuffixLegacy
	if v == protocol.VariantModern {
		suffix = valueSuffixModern
	}

	remainder := sumDigits(timestamp) % 10
	value := fmt.Sprintf("%s%d%s", defaultBrand, remainder, suffix)
	valueHash := upperMD5(value)[:6]

	password := upperMD5(fmt.Sprintf("%d$%s", timestamp, valueHash))

	return BrokerCredentials{
		ClientID: clientID,
		Username: username,
		Password: password,
	}
}

// DeriveStatic returns the static fallback account some older models
// accept when the dynamic derivation is rejected.
func DeriveStatic(deviceID string) BrokerCredentials {
	flat := strings.ToUpper(strings.NewReplacer(":", "", "-", "").Replace(deviceID))
	return BrokerCredentials{
		ClientID: flat + "$vidaa_common",
		Username: staticUsername,
		Password: staticPassword,
	}
}

// canonicalDeviceID converts a flat 12-hex-digit MAC into colon form.
// Identifiers that already carry separators pass through unchanged.
func canonicalDeviceID(id string) string {
	if strings.ContainsAny(id, ":-") || len(id) != 12 {
		return id
	}
	parts := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		parts = append(parts, id[i:i+2])
	}
	return strings.Join(parts, ":")
}

// upperMD5 returns the uppercase hex MD5 digest of s. MD5 is what the
// firmware's credential check uses; this is interoperability, not a
// security choice.
func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// sumDigits adds the decimal digits of n.
func sumDigits(n int64) int64 {
	if n < 0 {
		n = -n
	}
	var total int64
	for n > 0 {
		total += n % 10
		n /= 10
	}
	return total
}
