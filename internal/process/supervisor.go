package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Polyfrost/onelauncher-core/internal/cluster"
	"github.com/Polyfrost/onelauncher-core/internal/ingress"
	"github.com/Polyfrost/onelauncher-core/internal/logtail"
	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

const (
	pollInterval    = 50 * time.Millisecond
	playtimeCredit  = 60 * time.Second
)

// LaunchSpec is everything Launch needs to spawn the JVM; composing the
// java path and argument vector is installer's job (ComposeJVMArgs/
// ComposeGameArgs + JavaManager.Select), not the supervisor's.
type LaunchSpec struct {
	Cluster    *cluster.Cluster
	JavaPath   string
	Args       []string // full jvm args + main class + game args, already composed
	WorkingDir string
	Credential logtail.Credential
}

// running is the supervisor's bookkeeping for one live child.
type running struct {
	cmd     *exec.Cmd
	cluster *cluster.Cluster
	record  Record
	started time.Time
}

// Supervisor is the process supervisor of spec §4.I. It owns
// processor.json and the poll-wait run loop for every child it spawns
// or rescues, with a wrapper-command + pre/post-hook + censor model.
type Supervisor struct {
	store  *Store
	bus    *ingress.Bus
	engine *cluster.Engine

	osUsername string
	osRealName string

	mu      sync.Mutex
	running map[string]*running // keyed by process uuid
}

func NewSupervisor(store *Store, bus *ingress.Bus, engine *cluster.Engine) *Supervisor {
	s := &Supervisor{
		store:   store,
		bus:     bus,
		engine:  engine,
		running: make(map[string]*running),
	}
	s.osUsername, s.osRealName = currentOSIdentity()
	return s
}

func currentOSIdentity() (username, realName string) {
	u, err := user.Current()
	if err != nil {
		return "", ""
	}
	return u.Username, u.Name
}

// Launch implements spec §4.I's Launch: optional synchronous pre-hook
// (aborting the launch on non-zero exit), spawn through an optional
// wrapper command, persist a process record before the start event.
func (s *Supervisor) Launch(ctx context.Context, spec LaunchSpec) (Record, error) {
	c := spec.Cluster
	if c.PreHook != "" {
		if err := runHookSync(ctx, c.PreHook, spec.WorkingDir, nil); err != nil {
			return Record{}, onelauncher.Wrap(onelauncher.KindProcessorFailed, err, "pre-hook")
		}
	}

	name, args := spec.JavaPath, spec.Args
	if c.WrapperCommand != "" {
		name, args = c.WrapperCommand, append([]string{spec.JavaPath}, spec.Args...)
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = spec.WorkingDir
	cmd.Env = append(os.Environ(), envPairs(c.ExtraEnv())...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return Record{}, onelauncher.Wrap(onelauncher.KindIO, err, name)
	}

	rec := Record{
		UUID:        uuid.NewString(),
		PID:         cmd.Process.Pid,
		StartTime:   time.Now().UTC(),
		ExeName:     filepath.Base(spec.JavaPath),
		ExePath:     spec.JavaPath,
		ClusterPath: spec.WorkingDir,
		ClusterID:   c.ID,
		PostHook:    c.PostHook,
	}
	if err := s.store.Insert(rec); err != nil {
		_ = cmd.Process.Kill()
		return Record{}, err
	}

	r := &running{cmd: cmd, cluster: c, record: rec, started: time.Now()}
	s.mu.Lock()
	s.running[rec.UUID] = r
	s.mu.Unlock()

	s.publishProcess(rec, "started")
	go s.runLoop(r, spec.Credential)

	return rec, nil
}

func envPairs(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// runLoop implements spec §4.I's run loop: poll every 50ms, credit
// recently_played every accumulated 60s, and on exit commit playtime,
// drop the process record, and run the post-hook or emit a crash
// notification.
func (s *Supervisor) runLoop(r *running, cred logtail.Credential) {
	s.waitAndSettle(r, cred, nil)
}

// waitAndSettle polls cmd (or, for a rescued process with no *exec.Cmd,
// pid) until exit, crediting playtime along the way, then runs the
// shared exit handling.
func (s *Supervisor) waitAndSettle(r *running, cred logtail.Credential, rescuedPID *int) {
	waitDone := make(chan error, 1)
	if r.cmd != nil {
		go func() { waitDone <- r.cmd.Wait() }()
	} else {
		go func() { waitDone <- waitByPID(*rescuedPID) }()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	lastCredit := time.Now()

	var waitErr error
	for {
		select {
		case waitErr = <-waitDone:
			goto exited
		case <-ticker.C:
			if time.Since(lastCredit) >= playtimeCredit {
				lastCredit = time.Now()
				s.creditPlaytime(r.cluster.ID, int64(playtimeCredit.Seconds()))
			}
		}
	}
exited:
	s.onExit(r, cred, waitErr)
}

func (s *Supervisor) creditPlaytime(clusterID string, seconds int64) {
	if s.engine == nil {
		return
	}
	_ = s.engine.Edit(clusterID, func(c *cluster.Cluster) error {
		c.RecentlyPlayed += seconds
		return nil
	})
}

func (s *Supervisor) onExit(r *running, cred logtail.Credential, waitErr error) {
	s.mu.Lock()
	delete(s.running, r.record.UUID)
	s.mu.Unlock()

	exitCode := exitCodeOf(waitErr)

	if s.engine != nil {
		_ = s.engine.Edit(r.cluster.ID, func(c *cluster.Cluster) error {
			now := time.Now().UTC()
			c.OverallPlayed += c.RecentlyPlayed
			c.RecentlyPlayed = 0
			c.LastPlayedAt = &now
			return nil
		})
	}

	_ = s.store.Remove(r.record.UUID)
	s.publishProcess(r.record, "finished")

	if exitCode != 0 && r.cluster.Stage == cluster.StageInstalled {
		s.publishMessage(s.censor(fmt.Sprintf("cluster %s crashed (exit code %d)", r.cluster.Name, exitCode), cred))
		return
	}

	if r.record.PostHook != "" {
		if err := runHookSync(context.Background(), r.record.PostHook, r.record.ClusterPath, nil); err != nil {
			s.publishMessage(s.censor(fmt.Sprintf("post-hook for %s failed: %v", r.cluster.Name, err), cred))
		}
	}
}

// censor redacts a credential's secrets and the OS identity from any
// outbound message, per spec §4.K; messages built from hook output or
// error text can otherwise leak an access token into the UI log.
func (s *Supervisor) censor(msg string, cred logtail.Credential) string {
	return logtail.Censor(msg, []logtail.Credential{cred}, s.osUsername, s.osRealName)
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// Kill sends the native kill signal to the process, per spec §4.I; a
// subsequent try_wait (the run loop's own Wait) observes the exit by
// the usual path, which the OS conventionally reports as code 0 for a
// signalled process on this platform's build of killProcess.
func (s *Supervisor) Kill(processUUID string) error {
	s.mu.Lock()
	r, ok := s.running[processUUID]
	s.mu.Unlock()
	if !ok {
		return onelauncher.NotFound("process", processUUID)
	}
	return killProcess(r.record.PID)
}

// Running returns the process records currently tracked in memory, for
// get_running_clusters.
func (s *Supervisor) Running() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.running))
	for _, r := range s.running {
		out = append(out, r.record)
	}
	return out
}

func (s *Supervisor) publishProcess(rec Record, phase string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ingress.Event{
		Type:        "process",
		Description: phase,
		Message:     rec.ClusterID,
	})
}

func (s *Supervisor) publishMessage(msg string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ingress.Event{Type: "message", Message: msg})
}

// runHookSync runs a hook command synchronously with the given working
// directory and environment, returning an error on a non-zero exit.
func runHookSync(ctx context.Context, command, workDir string, env []string) error {
	cmd := exec.CommandContext(ctx, command)
	cmd.Dir = workDir
	if env != nil {
		cmd.Env = env
	}
	return cmd.Run()
}
