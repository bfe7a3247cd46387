package sync

import (
	"fmt"

	"github.com/mitkury/supa/internal/persist"
)

// SpaceSync ties together the two halves of op sync for one open space: the
// periodic flush of local ops to disk (persist.Flusher) and the fs-watch
// ingestion of other peers' writes (FSWatcher). Both already run their own
// Start/Stop loop; SpaceSync just sequences them so callers have one thing
// to start and stop per open space.
type SpaceSync struct {
	flusher *persist.Flusher
	watcher *FSWatcher
}

// NewSpaceSync constructs a SpaceSync. watcher may be nil if fs-watch is
// disabled (config.SyncConfig.WatchEnabled == false); the space then relies
// solely on the flusher and whatever wire duplexes are attached separately.
func NewSpaceSync(flusher *persist.Flusher, watcher *FSWatcher) *SpaceSync {
	return &SpaceSync{flusher: flusher, watcher: watcher}
}

// Start begins both the flush loop and, if present, the fs-watch loop.
func (s *SpaceSync) Start() error {
	s.flusher.Start()
	if s.watcher == nil {
		return nil
	}
	if err := s.watcher.Start(); err != nil {
		s.flusher.Stop()
		return fmt.Errorf("sync: starting fs watcher: %w", err)
	}
	return nil
}

// Stop halts both loops, flushing once more before returning so no
// local op generated just before shutdown is lost.
func (s *SpaceSync) Stop() error {
	var watchErr error
	if s.watcher != nil {
		watchErr = s.watcher.Stop()
	}
	s.flusher.Stop()
	return watchErr
}
