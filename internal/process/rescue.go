package process

import (
	"log"
	"path/filepath"
	"time"

	"github.com/Polyfrost/onelauncher-core/internal/cluster"
	"github.com/Polyfrost/onelauncher-core/internal/logtail"
)

// startTimeTolerance absorbs the truncation between the second-resolution
// stat most OSes report and the stored RFC3339 timestamp.
const startTimeTolerance = 2 * time.Second

// Rescue implements spec §4.I's restart rescue: every processor.json
// record is checked against the live OS process table; a record is
// rescued iff the live process still has the same start time,
// executable name, and executable path, otherwise it's dropped with a
// warning. Rescued children resume the same run loop, poll-waited with
// no stdin/stdout pipes.
func (s *Supervisor) Rescue() {
	for _, rec := range s.store.All() {
		exePath, startTime, alive := liveIdentity(rec.PID)
		if !alive || !identityMatches(rec, exePath, startTime) {
			log.Printf("process: discarding stale record %s (pid %d no longer matches)", rec.UUID, rec.PID)
			_ = s.store.Remove(rec.UUID)
			continue
		}

		var c *cluster.Cluster
		c, err := s.engine.GetByID(rec.ClusterID)
		if err != nil {
			log.Printf("process: discarding orphaned record %s: %v", rec.UUID, err)
			_ = s.store.Remove(rec.UUID)
			continue
		}

		bumped, ok, err := s.store.Bump(rec.UUID, rec.Generation)
		if err != nil {
			log.Printf("process: could not bump generation for %s: %v", rec.UUID, err)
			continue
		}
		if !ok {
			log.Printf("process: skipping stale rescue attempt for %s (already rescued by another launcher instance)", rec.UUID)
			continue
		}
		rec = bumped

		r := &running{cluster: c, record: rec, started: rec.StartTime}
		s.mu.Lock()
		s.running[rec.UUID] = r
		s.mu.Unlock()

		pid := rec.PID
		go s.waitAndSettle(r, logtail.Credential{}, &pid)
	}
}

func identityMatches(rec Record, liveExePath string, liveStart time.Time) bool {
	if rec.ExeName != "" && filepath.Base(liveExePath) != rec.ExeName {
		return false
	}
	if rec.ExePath != "" && liveExePath != "" && liveExePath != rec.ExePath {
		return false
	}
	diff := liveStart.Sub(rec.StartTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= startTimeTolerance
}

// waitByPID poll-waits a process this launcher instance didn't spawn
// (os/exec.Cmd.Wait only works on direct children), the rescued-process
// counterpart of exec.Cmd.Wait. It has no useful exit code to report,
// consistent with the waitpid ECHILD case for non-child pids.
func waitByPID(pid int) error {
	for isAlive(pid) {
		time.Sleep(pollInterval)
	}
	return nil
}
