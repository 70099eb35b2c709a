// Package notify processes silent push notifications: typed payload decode,
// duplicate admission control, a durable replay queue and the router that
// turns notifications into single-record fetches.
package notify

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fieldops/fieldsync/internal/kinds"
)

// Ref identifies one changed entity in a push payload.
type Ref struct {
	Kind kinds.Kind `json:"kind"`
	ID   string     `json:"id"`
}

// Payload is a decoded push notification: a batch of changed-entity
// references. A Logout reference makes the whole payload a session
// termination order.
type Payload struct {
	Refs []Ref
}

// Logout reports whether the payload demands session termination.
func (p *Payload) Logout() bool {
	for _, r := range p.Refs {
		if r.Kind == kinds.Logout {
			return true
		}
	}
	return false
}

// wireRef matches the server's JSON shape. Ids arrive as numbers.
type wireRef struct {
	Kind int             `json:"kind"`
	ID   json.RawMessage `json:"id"`
}

type wirePayload struct {
	DataIDs []wireRef `json:"data_ids"`
}

// Decode parses a raw push payload at the transport boundary. The structure
// is validated here once; everything downstream works with typed refs.
func Decode(raw []byte) (*Payload, error) {
	var wire wirePayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode push payload: %w", err)
	}
	if len(wire.DataIDs) == 0 {
		return nil, fmt.Errorf("push payload has no data_ids")
	}

	p := &Payload{Refs: make([]Ref, 0, len(wire.DataIDs))}
	for i, w := range wire.DataIDs {
		kind := kinds.Kind(w.Kind)
		if !kinds.Valid(kind) {
			// Unknown kinds are kept; the router logs and skips them so a
			// newer server never breaks an older client.
			p.Refs = append(p.Refs, Ref{Kind: kind, ID: decodeID(w.ID)})
			continue
		}
		id := decodeID(w.ID)
		if id == "" && kind != kinds.Logout {
			return nil, fmt.Errorf("push payload ref %d: missing id", i)
		}
		p.Refs = append(p.Refs, Ref{Kind: kind, ID: id})
	}
	return p, nil
}

// decodeID accepts both numeric and string ids.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// DedupKey is the admission key for one ref.
func (r Ref) DedupKey() string {
	return strconv.Itoa(int(r.Kind)) + ":" + r.ID
}
