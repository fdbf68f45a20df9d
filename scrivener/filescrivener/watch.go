package filescrivener

import (
	"github.com/fsnotify/fsnotify"
)

// startWatch launches a best-effort directory watch that broadcasts the
// scrivener's wake.Gate on any filesystem event. It is raced, everywhere
// it's consulted, against a bounded poll (see pollInterval) - the contract
// is on observed semantics (no tailer starves), not on the watch mechanism
// itself (spec §9, "File notification").
func (s *Scrivener[E]) startWatch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warning().Err(err).Log(`filescrivener: directory watch unavailable, falling back to polling only`)
		return
	}
	if err := watcher.Add(s.dir); err != nil {
		s.logger.Warning().Err(err).Log(`filescrivener: failed to watch journal directory`)
		_ = watcher.Close()
		return
	}

	s.watcher = watcher

	go func() {
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				s.gate.Broadcast()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warning().Err(err).Log(`filescrivener: directory watch error`)

			case <-s.closed:
				return
			}
		}
	}()
}
