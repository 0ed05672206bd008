// Package codec decides how file content is carried in a report and in a
// request payload: printable text travels as is, anything else travels as
// "Base64:" followed by the standard base64 encoding of the raw bytes.
package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
)

// Prefix marks a payload whose remainder is base64-encoded bytes.
const Prefix = "Base64:"

// sampleThreshold is the size below which a buffer is always considered
// text; test payloads that small are textual.
const sampleThreshold = 100

// IsPlaintext reports whether b should be carried verbatim.
func IsPlaintext(b []byte) bool {
	if len(b) < sampleThreshold {
		return true
	}
	for _, c := range b {
		if c < 32 || c > 126 {
			return false
		}
	}
	return true
}

// Encode renders b for a report. Text that itself starts with the tag is
// tagged too so that Decode(Encode(b)) always returns b.
func Encode(b []byte) string {
	if IsPlaintext(b) && !bytes.HasPrefix(b, []byte(Prefix)) {
		return string(b)
	}
	return Prefix + base64.StdEncoding.EncodeToString(b)
}

// IsTagged reports whether s carries the base64 tag.
func IsTagged(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// Decode turns a payload back into the bytes to write.
func Decode(s string) ([]byte, error) {
	if !IsTagged(s) {
		return []byte(s), nil
	}
	raw := strings.NewReplacer("\n", "", "\r", "").Replace(s[len(Prefix):])
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", strings.TrimSuffix(Prefix, ":"), err)
	}
	return b, nil
}
