package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Error kinds named in spec §7. Only the ones relevant to this package are
// sentinel errors here; CycleRejected is internal to reptree and never
// surfaced.
var (
	ErrInvalidSpace    = errors.New("persist: invalid space")
	ErrSpaceIDMismatch = errors.New("persist: space id mismatch")
)

// spacePointer is the contents of space.json (§6).
type spacePointer struct {
	ID string `json:"id"`
}

// ReadSpaceID reads space.json under spaceDir and returns its declared id.
// A missing or malformed file is ErrInvalidSpace.
func ReadSpaceID(spaceDir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(spaceDir, "space.json"))
	if err != nil {
		return "", fmt.Errorf("%w: reading space.json: %v", ErrInvalidSpace, err)
	}
	var ptr spacePointer
	if err := json.Unmarshal(raw, &ptr); err != nil || ptr.ID == "" {
		return "", fmt.Errorf("%w: malformed space.json", ErrInvalidSpace)
	}
	return ptr.ID, nil
}

// WriteSpaceID writes space.json for a newly created space.
func WriteSpaceID(spaceDir, id string) error {
	if err := os.MkdirAll(spaceDir, 0o755); err != nil {
		return fmt.Errorf("creating space directory: %w", err)
	}
	raw, err := json.Marshal(spacePointer{ID: id})
	if err != nil {
		return fmt.Errorf("marshaling space.json: %w", err)
	}
	return os.WriteFile(filepath.Join(spaceDir, "space.json"), raw, 0o644)
}

// VerifyRoot returns ErrSpaceIDMismatch if the tree's actual root id
// doesn't match the pointer's declared id — a hard failure, per §7.
func VerifyRoot(spaceDir, actualRootID string) error {
	declared, err := ReadSpaceID(spaceDir)
	if err != nil {
		return err
	}
	if declared != actualRootID {
		return fmt.Errorf("%w: space.json declares %s, tree root is %s", ErrSpaceIDMismatch, declared, actualRootID)
	}
	return nil
}
