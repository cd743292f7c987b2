// Package process is the process supervisor of spec §4.I: spawns the
// JVM through an optional wrapper, tracks children across launcher
// restarts by PID + start-time, accumulates playtime, runs pre/post
// hooks, censors secrets in ingress messages, and drives the "process"
// outbound event.
package process

import "time"

// Record is one entry of processor.json, per spec §3/§6: enough to
// rediscover and validate a child process across a launcher restart.
type Record struct {
	UUID        string    `json:"uuid"`
	PID         int       `json:"pid"`
	StartTime   time.Time `json:"start_time"`
	ExeName     string    `json:"name"`
	ExePath     string    `json:"exe"`
	ClusterPath string    `json:"cluster_path"`
	ClusterID   string    `json:"cluster_id"`
	PostHook    string    `json:"post,omitempty"`

	// Generation is bumped every time a record is rescued, so a launcher
	// instance racing another over the same processor.json can tell its
	// own in-memory copy is stale before acting on it: Store.Bump only
	// succeeds if the on-disk generation still matches the caller's.
	Generation int `json:"generation"`
}

// document is the on-disk shape of processor.json: a map keyed by
// process uuid.
type document map[string]Record
