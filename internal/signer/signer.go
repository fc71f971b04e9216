package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Sign computes the request authentication code for a device at a given
// unix timestamp: HMAC-SHA256 keyed with the API secret over the device id
// concatenated with the decimal timestamp, no separator. The result is a
// 64-character lowercase hex string. The collector recomputes the same
// value, so the output must match byte for byte for identical inputs.
func Sign(deviceID string, unixSeconds int64, apiSecret string) string {
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(deviceID + strconv.FormatInt(unixSeconds, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the expected code for the given
// inputs. Used by the development collector; comparison is constant time.
func Verify(deviceID string, unixSeconds int64, apiSecret, signature string) bool {
	expected := Sign(deviceID, unixSeconds, apiSecret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
