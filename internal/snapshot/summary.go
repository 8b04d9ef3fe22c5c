package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chanctl/chanctl/internal/config"
	"github.com/chanctl/chanctl/pkg/types"
)

// detailsUnavailable is rendered when no rules backup predates a snapshot.
const detailsUnavailable = "update details unavailable (no matching rules backup)"

// Summarize renders a human-readable description of what a snapshot was
// taken for: the rule assignments active at capture time, recovered from
// the nearest-earlier rules backup.
func (m *Manager) Summarize(snap *types.Snapshot) string {
	header := fmt.Sprintf("%s: %d records captured %s",
		snap.Collection, len(snap.Records), snap.Timestamp.Format("2006-01-02 15:04:05"))

	backup := m.nearestBackupBefore(snap)
	if backup == "" {
		return header + "\n  " + detailsUnavailable
	}

	doc, err := config.LoadUpdateDocument(backup)
	if err != nil {
		m.log.WithField("file", backup).Warn(fmt.Sprintf("rules backup unreadable: %v", err))
		return header + "\n  " + detailsUnavailable
	}

	var lines []string
	for _, rule := range doc.Rules() {
		if !rule.Enabled {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s = %v (%s)", rule.Field, rule.Value, rule.Mode))
	}
	if len(lines) == 0 {
		return header + "\n  no enabled rules in backup"
	}
	return header + "\n" + strings.Join(lines, "\n")
}

// nearestBackupBefore finds the rules backup with the latest timestamp not
// after the snapshot's. Both file name families embed the same millisecond
// timestamp format, so lexical comparison orders them correctly.
func (m *Manager) nearestBackupBefore(snap *types.Snapshot) string {
	dirEntries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return ""
	}

	cutoff := timestamp(snap.Timestamp)
	var candidates []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		ts := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), ".yaml")
		if ts <= cutoff {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.Strings(candidates)
	return filepath.Join(m.backupDir, candidates[len(candidates)-1])
}
