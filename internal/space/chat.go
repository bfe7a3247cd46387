package space

import (
	"time"

	"github.com/mitkury/supa/internal/opid"
	"github.com/mitkury/supa/internal/vertex"
)

// Chat app trees use these named children under their root, and these
// reserved message-vertex keys (§6).
const (
	ChatAppID        = "chat"
	ChildMessages    = "messages"
	ChildJobs        = "jobs"
	MsgRole          = "role"
	MsgText          = "text"
	MsgCreatedAt     = "createdAt"
	MsgInProgress    = "inProgress"
	MsgThinking      = "thinking"
	MsgMain          = "main"
	RoleUser         = "user"
	RoleAssistant    = "assistant"
	RoleError        = "error"
)

// NewChatAppTree creates a chat AppTree (scenario S4): a root named
// "app-tree" with appId "chat", plus two named children, "messages" and
// "jobs".
func (s *Space) NewChatAppTree(peerID string) *AppTree {
	at := s.NewAppTree(peerID, ChatAppID)
	root := at.Tree.Vertex(at.RootVertexID())
	root.NewChild(map[string]any{vertex.PropName: ChildMessages})
	root.NewChild(map[string]any{vertex.PropName: ChildJobs})
	return at
}

func (at *AppTree) namedChild(name string) *vertex.Handle {
	root := at.Tree.Vertex(at.RootVertexID())
	return root.FindFirstChildWithProperty(vertex.PropName, name)
}

// Messages returns the handle for the "messages" named child.
func (at *AppTree) Messages() *vertex.Handle { return at.namedChild(ChildMessages) }

// Jobs returns the handle for the "jobs" named child.
func (at *AppTree) Jobs() *vertex.Handle { return at.namedChild(ChildJobs) }

// AppendMessage creates a message vertex under "messages" (scenario S5):
// one Move plus _n/role/text/createdAt/main property ops (and the shared
// _c timestamp NewVertex adds), all persisted.
// Streaming updates should go through SetStreamingText instead, which
// writes a transient property and is never persisted.
func (at *AppTree) AppendMessage(role, text string) *vertex.Handle {
	msgs := at.Messages()
	return msgs.NewChild(map[string]any{
		vertex.PropName: "message",
		MsgRole:         role,
		MsgText:         text,
		MsgCreatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
		MsgMain:         true,
	})
}

// SetStreamingText streams partial text onto an in-progress message via a
// transient property; it is never written to the op store.
func SetStreamingText(msg *vertex.Handle, text string) {
	msg.SetTransientProperty(MsgText, text)
}

// MainSibling resolves the canonical branch among parent's children: the
// one with main=true written by the greatest OpID, per the open-question
// resolution in spec §9 (option (a) — accept any main=true with the
// largest deciding OpID; see DESIGN.md). Returns nil if no child currently
// carries main=true.
func MainSibling(parent *vertex.Handle) *vertex.Handle {
	var best *vertex.Handle
	var bestOp opid.ID
	for _, child := range parent.Children() {
		v := child.Get()
		if v == nil {
			continue
		}
		pv, ok := v.Properties[MsgMain]
		if !ok {
			continue
		}
		var isMain bool
		if pv.Decode(&isMain) != nil || !isMain {
			continue
		}
		writerOp, _ := child.LastPropertyOp(MsgMain)
		if best == nil || writerOp.Greater(bestOp) {
			best, bestOp = child, writerOp
		}
	}
	return best
}
