package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ParseSignatureHeader splits "ts=1704908010,v1=618c85..." into its parts.
func ParseSignatureHeader(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	return ts, v1
}

// SignatureManifest is the string the provider signs:
// "id:<data.id>;request-id:<x-request-id>;ts:<ts>;". Empty parts are omitted.
func SignatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	if ts != "" {
		b.WriteString("ts:" + ts + ";")
	}
	return b.String()
}

// Sign returns the hex HMAC-SHA256 of manifest under secret.
func Sign(secret, manifest string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(manifest))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks an x-signature header against the notification id
// and x-request-id.
func VerifySignature(secret, header, dataID, requestID string) bool {
	ts, v1 := ParseSignatureHeader(header)
	if ts == "" || v1 == "" {
		return false
	}
	expected := Sign(secret, SignatureManifest(dataID, requestID, ts))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(v1)))
}
