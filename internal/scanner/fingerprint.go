package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// CanonicalPayload reduces a raw provider record to the minimal identifying
// string used for fingerprinting. When the record exposes a canonical "line"
// field only that string is used, so volatile metadata fields cannot churn
// the fingerprint. Otherwise the record is re-marshalled through a map,
// which sorts keys and makes the serialization order-independent.
func CanonicalPayload(record json.RawMessage) string {
	var withLine struct {
		Line *string `json:"line"`
	}
	if err := json.Unmarshal(record, &withLine); err == nil && withLine.Line != nil && *withLine.Line != "" {
		return *withLine.Line
	}

	var m map[string]any
	if err := json.Unmarshal(record, &m); err == nil {
		if b, err := json.Marshal(m); err == nil {
			return string(b)
		}
	}

	return strings.TrimSpace(string(record))
}

// Fingerprint is the deterministic digest of one fact: the same source and
// canonical payload always produce the same value, across sweeps and across
// process restarts.
func Fingerprint(source, payload string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
