package wire

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mitkury/supa/internal/opid"
)

// frameKind tags a duplex message: an initial op snapshot, a batch of
// incremental op lines, or a control envelope (§4.G wire variant).
type frameKind string

const (
	frameSnapshot frameKind = "snapshot"
	frameOps      frameKind = "ops"
	frameControl  frameKind = "control"
)

type frame struct {
	Kind     frameKind       `json:"kind"`
	Lines    []string        `json:"lines,omitempty"`
	Envelope *Envelope       `json:"envelope,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Duplex is one peer-to-peer wire connection. Ordering on the wire is not
// required — the engine is commutative (§4.G) — so lines can be merged in
// whatever order they arrive.
type Duplex struct {
	conn   *websocket.Conn
	onOps  func(lines [][]byte)
	onCtrl func(Envelope)
}

// Upgrade upgrades an HTTP connection to a websocket duplex.
func Upgrade(w http.ResponseWriter, r *http.Request, onOps func(lines [][]byte), onCtrl func(Envelope)) (*Duplex, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: upgrading websocket: %w", err)
	}
	return &Duplex{conn: conn, onOps: onOps, onCtrl: onCtrl}, nil
}

// Dial connects to a remote space's wire endpoint.
func Dial(url string, onOps func(lines [][]byte), onCtrl func(Envelope)) (*Duplex, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: dialing %s: %w", url, err)
	}
	return &Duplex{conn: conn, onOps: onOps, onCtrl: onCtrl}, nil
}

// SendSnapshot sends the initial op list on connect.
func (d *Duplex) SendSnapshot(ops []opid.Op) error {
	lines, err := encodeLines(ops)
	if err != nil {
		return err
	}
	return d.conn.WriteJSON(frame{Kind: frameSnapshot, Lines: lines})
}

// SendOps sends a subsequent batch of ops, identical in wire form to the
// JSONL lines a peer would append locally.
func (d *Duplex) SendOps(ops []opid.Op) error {
	lines, err := encodeLines(ops)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return d.conn.WriteJSON(frame{Kind: frameOps, Lines: lines})
}

// SendControl sends a control envelope (broadcast/validate semantics).
func (d *Duplex) SendControl(env Envelope) error {
	return d.conn.WriteJSON(frame{Kind: frameControl, Envelope: &env})
}

// Run reads frames until the connection closes, dispatching to onOps /
// onCtrl. Snapshot and ops lines are handed to onOps undecoded; Run does
// not use peerID, so onOps attributes the lines to a peer itself (lines on
// the wire carry no embedded peer id, §4.A).
func (d *Duplex) Run(peerID string) error {
	for {
		var f frame
		if err := d.conn.ReadJSON(&f); err != nil {
			return err
		}
		switch f.Kind {
		case frameSnapshot, frameOps:
			if d.onOps == nil {
				continue
			}
			lines := make([][]byte, len(f.Lines))
			for i, l := range f.Lines {
				lines[i] = []byte(l)
			}
			d.onOps(lines)
		case frameControl:
			if d.onCtrl != nil && f.Envelope != nil {
				d.onCtrl(*f.Envelope)
			}
		}
	}
}

// Close closes the underlying connection.
func (d *Duplex) Close() error { return d.conn.Close() }

func encodeLines(ops []opid.Op) ([]string, error) {
	lines := make([]string, 0, len(ops))
	for _, op := range ops {
		if sp, ok := op.(opid.SetProperty); ok && sp.Transient {
			continue
		}
		line, err := opid.EncodeLine(op)
		if err != nil {
			return nil, fmt.Errorf("wire: encoding op: %w", err)
		}
		lines = append(lines, string(line))
	}
	return lines, nil
}

// DecodeLines decodes wire lines into ops, attributing them to peerID and
// skipping any malformed line (§7).
func DecodeLines(lines [][]byte, peerID string) []opid.Op {
	ops := make([]opid.Op, 0, len(lines))
	for _, line := range lines {
		op, err := opid.DecodeLine(line, peerID)
		if err != nil {
			continue
		}
		ops = append(ops, op)
	}
	return ops
}
