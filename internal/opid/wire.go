package opid

import (
	"encoding/json"
	"fmt"
)

// EncodeLine renders op as one compact JSON array line, per the wire
// encoding in spec §4.A / §6. The op's PeerID is not embedded: it is
// recovered from the containing file's name on read.
func EncodeLine(op Op) ([]byte, error) {
	switch o := op.(type) {
	case Move:
		return json.Marshal([]any{"m", o.OpID.Counter, o.TargetID, o.ParentID})
	case SetProperty:
		if o.Transient {
			return nil, fmt.Errorf("opid: transient ops are never persisted")
		}
		return json.Marshal([]any{"p", o.OpID.Counter, o.TargetID, o.Key, json.RawMessage(o.Value.Raw())})
	default:
		return nil, fmt.Errorf("opid: unknown op kind %T", op)
	}
}

// DecodeLine parses one JSONL line into an Op, attributing peerID (taken
// from the containing file's basename) to the reconstructed OpID.
func DecodeLine(line []byte, peerID string) (Op, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("opid: malformed line: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("opid: empty op array")
	}
	var tag string
	if err := json.Unmarshal(raw[0], &tag); err != nil {
		return nil, fmt.Errorf("opid: malformed tag: %w", err)
	}
	switch tag {
	case "m":
		if len(raw) != 4 {
			return nil, fmt.Errorf("opid: move op wants 4 fields, got %d", len(raw))
		}
		var counter uint64
		var target VertexID
		if err := json.Unmarshal(raw[1], &counter); err != nil {
			return nil, fmt.Errorf("opid: malformed move counter: %w", err)
		}
		if err := json.Unmarshal(raw[2], &target); err != nil {
			return nil, fmt.Errorf("opid: malformed move target: %w", err)
		}
		var parent *VertexID
		if string(raw[3]) != "null" {
			var p VertexID
			if err := json.Unmarshal(raw[3], &p); err != nil {
				return nil, fmt.Errorf("opid: malformed move parent: %w", err)
			}
			parent = &p
		}
		return Move{
			OpID:     ID{Counter: counter, PeerID: peerID},
			TargetID: target,
			ParentID: parent,
		}, nil
	case "p":
		if len(raw) != 5 {
			return nil, fmt.Errorf("opid: setProperty op wants 5 fields, got %d", len(raw))
		}
		var counter uint64
		var target VertexID
		var key string
		if err := json.Unmarshal(raw[1], &counter); err != nil {
			return nil, fmt.Errorf("opid: malformed prop counter: %w", err)
		}
		if err := json.Unmarshal(raw[2], &target); err != nil {
			return nil, fmt.Errorf("opid: malformed prop target: %w", err)
		}
		if err := json.Unmarshal(raw[3], &key); err != nil {
			return nil, fmt.Errorf("opid: malformed prop key: %w", err)
		}
		return SetProperty{
			OpID:     ID{Counter: counter, PeerID: peerID},
			TargetID: target,
			Key:      key,
			Value:    RawValue(raw[4]),
		}, nil
	default:
		return nil, fmt.Errorf("opid: unknown op tag %q", tag)
	}
}
