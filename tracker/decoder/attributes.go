package decoder

import (
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/spf13/cast"
)

var attributeKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_.]*$`)

// Attributes is the uniform key/value view of one chain event.
type Attributes map[string]string

// NormalizeAttributes converts a raw attribute list into Attributes.
//
// Older CometBFT nodes return keys and values base64-encoded; typed SDK events
// return JSON-quoted values. Both are undone here so decoders only see plain text.
// When a key repeats, the first occurrence wins.
func NormalizeAttributes(raw []abci.EventAttribute) Attributes {
	attrs := make(Attributes, len(raw))
	for _, a := range raw {
		key, value := a.Key, a.Value
		if decodedKey, ok := decodeBase64Key(key); ok {
			key = decodedKey
			if decodedValue, err := base64.StdEncoding.DecodeString(value); err == nil {
				value = string(decodedValue)
			}
		}
		if _, exists := attrs[key]; exists {
			continue
		}
		attrs[key] = unquote(value)
	}
	return attrs
}

func decodeBase64Key(key string) (string, bool) {
	if key == "" || attributeKeyPattern.MatchString(key) && !looksBase64(key) {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(decoded) == 0 {
		return "", false
	}
	k := string(decoded)
	if !attributeKeyPattern.MatchString(k) {
		return "", false
	}
	return k, true
}

// looksBase64 reports whether s could be a padded base64 string.
func looksBase64(s string) bool {
	return len(s)%4 == 0
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		if s, err := strconv.Unquote(v); err == nil {
			return s
		}
		return v[1 : len(v)-1]
	}
	return v
}

// Get returns the attribute or "" when absent.
func (a Attributes) Get(key string) string {
	return a[key]
}

// Has reports whether key is present.
func (a Attributes) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Require returns the attribute or a decode error naming the missing key.
func (a Attributes) Require(eventType, key string) (string, error) {
	v, ok := a[key]
	if !ok || v == "" {
		return "", missingAttribute(eventType, key)
	}
	return v, nil
}

// Uint64 parses a required unsigned integer attribute.
func (a Attributes) Uint64(eventType, key string) (uint64, error) {
	v, err := a.Require(eventType, key)
	if err != nil {
		return 0, err
	}
	n, err := cast.ToUint64E(strings.TrimSpace(v))
	if err != nil {
		return 0, invalidAttribute(eventType, key, err)
	}
	return n, nil
}

// Bytes returns a text attribute, or its hex twin decoded when only that one is present.
func (a Attributes) Bytes(textKey, hexKey string) ([]byte, bool) {
	if v, ok := a[textKey]; ok && v != "" {
		return []byte(v), true
	}
	if v, ok := a[hexKey]; ok && v != "" {
		if b, err := hex.DecodeString(v); err == nil {
			return b, true
		}
	}
	return nil, false
}

// RawEvent is a chain event after attribute normalisation.
type RawEvent struct {
	Type       string
	Attributes Attributes
}

// NormalizeEvents normalises every event of a transaction, keeping their order.
func NormalizeEvents(events []abci.Event) []RawEvent {
	out := make([]RawEvent, 0, len(events))
	for _, e := range events {
		out = append(out, RawEvent{Type: e.Type, Attributes: NormalizeAttributes(e.Attributes)})
	}
	return out
}
