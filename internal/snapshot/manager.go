// Package snapshot persists pre-mutation record copies and the update-rule
// backups they correlate with, and restores records from a saved snapshot.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chanctl/chanctl/internal/errors"
	"github.com/chanctl/chanctl/internal/logger"
	"github.com/chanctl/chanctl/internal/source"
	"github.com/chanctl/chanctl/pkg/types"
)

const backupPrefix = "update-rules."

// Manager owns the snapshot and rules-backup directories.
type Manager struct {
	snapshotDir string
	backupDir   string
	log         logger.Logger
}

// NewManager creates a manager over the two state directories.
func NewManager(snapshotDir, backupDir string, log logger.Logger) *Manager {
	return &Manager{snapshotDir: snapshotDir, backupDir: backupDir, log: log}
}

// timestamp renders a wall-clock time with millisecond precision, sortable
// lexically. Used in both snapshot and backup file names.
func timestamp(t time.Time) string {
	return t.Format("2006-01-02-150405") + fmt.Sprintf("%03d", t.Nanosecond()/1e6)
}

// Capture persists a snapshot of the given records and returns it with the
// file it was written to.
func (m *Manager) Capture(records []types.Record, identity string) (*types.Snapshot, string, error) {
	snap := &types.Snapshot{
		Collection: sanitize(identity),
		Timestamp:  time.Now(),
		Records:    records,
	}
	if snap.Records == nil {
		snap.Records = []types.Record{}
	}
	if err := snap.Validate(); err != nil {
		return nil, "", errors.Wrap(errors.KindSnapshot, "capturing snapshot", err)
	}

	if err := os.MkdirAll(m.snapshotDir, 0o755); err != nil {
		return nil, "", errors.Wrap(errors.KindSnapshot, "creating snapshot directory", err)
	}

	name := fmt.Sprintf("%s-%s.json", snap.Collection, timestamp(snap.Timestamp))
	path := filepath.Join(m.snapshotDir, name)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, "", errors.Wrap(errors.KindSnapshot, "encoding snapshot", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, "", errors.Wrap(errors.KindSnapshot, fmt.Sprintf("writing %s", path), err)
	}

	m.log.WithFields(map[string]interface{}{
		"file":    name,
		"records": len(records),
	}).Info("snapshot written")
	return snap, path, nil
}

// Load reads one snapshot file.
func (m *Manager) Load(path string) (*types.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindSnapshot, fmt.Sprintf("reading %s", path), err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(errors.KindSnapshot, fmt.Sprintf("parsing %s", path), err)
	}
	if err := snap.Validate(); err != nil {
		return nil, errors.Wrap(errors.KindSnapshot, fmt.Sprintf("validating %s", path), err)
	}
	return &snap, nil
}

// Entry is one snapshot file found on disk, newest first in listings.
type Entry struct {
	Path     string
	Name     string
	ModTime  time.Time
	Identity string
}

// List returns snapshot files for an identity, newest modification first.
// An empty identity lists everything.
func (m *Manager) List(identity string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(m.snapshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindSnapshot, "listing snapshots", err)
	}

	identity = sanitize(identity)
	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if identity != "" && !strings.HasPrefix(name, identity+"-") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Path:     filepath.Join(m.snapshotDir, name),
			Name:     name,
			ModTime:  info.ModTime(),
			Identity: identityFromName(name),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

// FindLatestFor returns the most recently modified snapshot for an
// identity, or nil when none exists.
func (m *Manager) FindLatestFor(identity string) (*types.Snapshot, string, error) {
	entries, err := m.List(identity)
	if err != nil {
		return nil, "", err
	}
	if len(entries) == 0 {
		return nil, "", nil
	}
	snap, err := m.Load(entries[0].Path)
	if err != nil {
		return nil, "", err
	}
	return snap, entries[0].Path, nil
}

// BackupRules copies the update document into the backup directory with a
// timestamped name so a snapshot can later be correlated with the rules
// that produced it.
func (m *Manager) BackupRules(rulesPath string, at time.Time) (string, error) {
	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return "", errors.Wrap(errors.KindSnapshot, fmt.Sprintf("reading %s", rulesPath), err)
	}
	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return "", errors.Wrap(errors.KindSnapshot, "creating backup directory", err)
	}

	name := fmt.Sprintf("%s%s.yaml", backupPrefix, timestamp(at))
	path := filepath.Join(m.backupDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(errors.KindSnapshot, fmt.Sprintf("writing %s", path), err)
	}
	return path, nil
}

// Restore re-issues one full-record patch per snapshot entry, in id order.
// The caller's snapshot is left untouched. Partial failures are reported
// per record and never retried.
func (m *Manager) Restore(ctx context.Context, snap *types.Snapshot, src source.Source) []types.PatchResult {
	snap = snap.Clone()
	sort.Slice(snap.Records, func(i, j int) bool {
		return snap.Records[i].ID < snap.Records[j].ID
	})

	results := make([]types.PatchResult, 0, len(snap.Records))
	for i := range snap.Records {
		rec := &snap.Records[i]

		changed := make(map[string]any, len(rec.Fields)+1)
		for k, v := range rec.Fields {
			changed[k] = v
		}
		changed["name"] = rec.Name

		err := src.ApplyPatch(ctx, &types.Patch{ID: rec.ID, Changed: changed})
		result := types.PatchResult{ID: rec.ID, Name: rec.Name, Success: err == nil}
		if err != nil {
			result.Message = err.Error()
			m.log.Error(fmt.Sprintf("restoring %s", rec.String()), err)
		} else {
			result.Message = "restored"
		}
		results = append(results, result)
	}
	return results
}

// identityFromName recovers the identity a snapshot file was captured
// under. The identity may itself contain hyphens, so the fixed-width
// timestamp suffix is stripped instead of splitting on them.
func identityFromName(name string) string {
	base := strings.TrimSuffix(name, ".json")
	tsLen := len("2006-01-02-150405999")
	if len(base) <= tsLen+1 {
		return ""
	}
	return base[:len(base)-tsLen-1]
}

func sanitize(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(name)
}
