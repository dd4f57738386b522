package coordinator

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/luxfi/agentsync/agent"
	"github.com/luxfi/agentsync/agentcrypto"
	"github.com/luxfi/agentsync/agentsyncerr"
)

// persistedSnapshot is the on-disk shape: agent state plus the unacked
// outbound queue (spec §6's "Persisted state").
type persistedSnapshot struct {
	State    agent.Wire      `json:"state"`
	Outbound []outboundEvent `json:"outbound"`
}

func snapshotPath(dir string) string {
	return filepath.Join(dir, "agentsync.snapshot.json")
}

// SaveSnapshot canonical-serializes the current state and outbound queue
// to dir/agentsync.snapshot.json, writing to a temp file first so a crash
// mid-write never leaves a corrupt snapshot in place.
func (c *Coordinator) SaveSnapshot(dir string) error {
	c.mu.Lock()
	snap := persistedSnapshot{State: c.state.ToWire(), Outbound: c.outbound}
	c.mu.Unlock()

	canon, err := agentcrypto.CanonicalSerialize(snap)
	if err != nil {
		return agentsyncerr.New(component, agentsyncerr.ParseError, "", "canonicalize snapshot", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return agentsyncerr.New(component, agentsyncerr.PermanentBackend, "", "create snapshot directory", err)
	}
	path := snapshotPath(dir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, canon, 0o644); err != nil {
		return agentsyncerr.New(component, agentsyncerr.PermanentBackend, "", "write snapshot", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return agentsyncerr.New(component, agentsyncerr.PermanentBackend, "", "commit snapshot", err)
	}
	return nil
}

// LoadSnapshot restores state and the outbound queue from dir. A missing
// snapshot file is not an error — startup proceeds from whatever initial
// state the caller already constructed. A corrupt snapshot aborts with a
// ParseError unless allowRecoverFromScratch is set, in which case it is
// treated the same as a missing file (spec §6).
func (c *Coordinator) LoadSnapshot(dir string, allowRecoverFromScratch bool) error {
	path := snapshotPath(dir)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return agentsyncerr.New(component, agentsyncerr.PermanentBackend, "", "read snapshot", err)
	}

	var snap persistedSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		if allowRecoverFromScratch {
			return nil
		}
		return agentsyncerr.New(component, agentsyncerr.ParseError, "", "corrupt snapshot; pass --allow-recover-from-scratch to proceed anyway", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	restored := agent.FromWire(snap.State, c.state.ReplicaID)
	restored.ReplicaID = c.state.ReplicaID
	c.state = restored
	c.outbound = snap.Outbound
	c.met.OutboundQueueDepth.Set(float64(len(c.outbound)))
	return nil
}
