package space

import "testing"

// TestBootstrap is scenario S1: creating a space yields a valid root with
// the five named children (including tombstone) and one default app-config.
func TestBootstrap(t *testing.T) {
	sp := New("p1", "My Space")

	if !sp.IsValid() {
		t.Fatalf("expected freshly created space to be valid")
	}

	root := sp.Tree.Vertex(sp.Tree.RootVertexID())
	if root.Name() != RootName {
		t.Errorf("expected root name %q, got %q", RootName, root.Name())
	}

	for _, name := range []string{ChildAppConfigs, ChildAppForest, ChildProviders, ChildSettings, ChildTombstone} {
		if root.FindFirstChildWithProperty("_n", name) == nil {
			t.Errorf("expected named child %q to exist", name)
		}
	}

	configs := sp.AppConfigs()
	if len(configs.Children()) != 1 {
		t.Errorf("expected exactly one default app-config vertex, got %d", len(configs.Children()))
	}
}

// TestReopenPreservesRoot simulates writing then reopening: folding the
// same op multiset through a fresh engine must yield the same root id
// (scenario S1's reload check, and scenario S6's restart check).
func TestReopenPreservesRoot(t *testing.T) {
	sp := New("p1", "My Space")
	originalRoot := sp.Tree.RootVertexID()

	ops := sp.Tree.PopLocalOps() // everything so far was generated locally

	reopened := FromOps("p1", ops)
	if reopened.Tree.RootVertexID() != originalRoot {
		t.Errorf("expected stable root id across reopen, got %s want %s", reopened.Tree.RootVertexID(), originalRoot)
	}
	if !reopened.IsValid() {
		t.Errorf("expected reopened space to be valid")
	}
}

// TestNewChatAppTree is scenario S4.
func TestNewChatAppTree(t *testing.T) {
	sp := New("p1", "My Space")

	var created bool
	sp.OnNewAppTree(func(at *AppTree) { created = true })

	at := sp.NewChatAppTree("p1")
	if !created {
		t.Errorf("expected OnNewAppTree listener to fire")
	}

	forestEntry := sp.AppForest().Children()
	if len(forestEntry) != 1 {
		t.Fatalf("expected one app-forest entry, got %d", len(forestEntry))
	}
	var tid string
	forestEntry[0].Get().Properties["tid"].Decode(&tid)
	if tid != at.RootVertexID() {
		t.Errorf("expected app-forest tid to reference the new app tree root")
	}

	if at.Messages() == nil || at.Jobs() == nil {
		t.Errorf("expected chat app tree to have messages and jobs children")
	}

	sp.SetTreeLoader(func(id string) (*AppTree, error) { return at, nil })
	loaded, err := sp.LoadAppTree(at.RootVertexID())
	if err != nil {
		t.Fatalf("LoadAppTree: %v", err)
	}
	if loaded != at {
		t.Errorf("expected memoized LoadAppTree to return the same instance without hitting the loader")
	}
}

// TestDeleteVertex exercises the tombstone lifecycle: deleting an
// app-forest entry moves it under the reserved tombstone child and
// IsDeleted picks that up, but the vertex itself is never removed.
func TestDeleteVertex(t *testing.T) {
	sp := New("p1", "My Space")
	at := sp.NewChatAppTree("p1")

	forestEntry := sp.AppForest().Children()[0]
	if sp.IsDeleted(forestEntry.ID()) {
		t.Fatalf("fresh app-forest entry should not be deleted")
	}

	sp.DeleteVertex(forestEntry.ID())

	if !sp.IsDeleted(forestEntry.ID()) {
		t.Errorf("expected app-forest entry to be deleted after DeleteVertex")
	}
	if forestEntry.Get() == nil {
		t.Errorf("deleted vertex must not be garbage-collected")
	}
	if len(sp.AppForest().Children()) != 0 {
		t.Errorf("expected deleted entry to no longer appear under app-forest")
	}
	if _, err := sp.LoadAppTree(at.RootVertexID()); err != nil {
		t.Errorf("deleting the forest pointer must not affect the app tree it referenced: %v", err)
	}
}

func TestAppendMessage(t *testing.T) {
	sp := New("p1", "My Space")
	at := sp.NewChatAppTree("p1")

	at.AppendMessage(RoleUser, "hello")
	msgs := at.Messages().Children()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	var text string
	msgs[0].Get().Properties[MsgText].Decode(&text)
	if text != "hello" {
		t.Errorf("expected message text %q, got %q", "hello", text)
	}

	main := MainSibling(at.Messages())
	if main == nil || main.ID() != msgs[0].ID() {
		t.Errorf("expected the single message to be the main branch")
	}
}
