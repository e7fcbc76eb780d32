// Package decoder turns raw chain data into the typed events the transfer
// interpreters correlate on.
//
// Cosmos transactions are decoded per domain (relay, primary, cosmos) because
// each chain plays a different role in a transfer; EVM logs are decoded against
// the gravity bridge contract ABI.
package decoder

// Decoder decodes chain data using the static routing knowledge in its Registry.
// It holds no mutable state and is safe for concurrent use.
type Decoder struct {
	registry Registry
}

// New returns a Decoder for the given registry.
func New(registry Registry) *Decoder {
	return &Decoder{registry: registry}
}

// Registry returns the routing knowledge the decoder classifies packets with.
func (d *Decoder) Registry() Registry {
	return d.registry
}
