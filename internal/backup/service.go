// Package backup provides scheduled snapshots of the SQLite session
// database. A snapshot is a consistent point-in-time copy taken with
// VACUUM INTO, so it works while the server keeps writing sessions.
package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Config holds backup service configuration.
type Config struct {
	// DBPath is the path to the sessions database.
	DBPath string

	// Dir is the directory snapshots are written to.
	Dir string

	// Interval between snapshots (default: 6h).
	Interval time.Duration

	// Keep is the number of snapshots retained; older ones are pruned
	// after each run (default: 14).
	Keep int
}

// Service takes periodic snapshots of the session database.
type Service struct {
	cfg Config
}

// SnapshotInfo describes one snapshot on disk.
type SnapshotInfo struct {
	Path      string
	Size      int64
	Timestamp time.Time
}

// NewService validates cfg and creates the snapshot directory.
func NewService(cfg Config) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("backup: database path is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup: snapshot directory is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 14
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: failed to create snapshot directory: %w", err)
	}

	return &Service{cfg: cfg}, nil
}

// Run takes snapshots at the configured interval until ctx is cancelled.
// Failures are logged, not fatal; the next tick tries again.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	log.Printf("backup: service started, interval=%v, dir=%s", s.cfg.Interval, s.cfg.Dir)

	for {
		select {
		case <-ctx.Done():
			log.Println("backup: service stopping")
			return
		case <-ticker.C:
			path, err := s.SnapshotNow()
			if err != nil {
				log.Printf("backup: scheduled snapshot failed: %v", err)
				continue
			}
			log.Printf("backup: snapshot written to %s", path)
		}
	}
}

// SnapshotNow takes one snapshot, verifies it, prunes old snapshots, and
// returns the snapshot path.
func (s *Service) SnapshotNow() (string, error) {
	if _, err := os.Stat(s.cfg.DBPath); err != nil {
		return "", fmt.Errorf("backup: sessions database not found: %w", err)
	}

	name := fmt.Sprintf("coref-sessions-%s.db", time.Now().Format("20060102-150405.000000"))
	path := filepath.Join(s.cfg.Dir, name)

	if err := snapshotSQLite(s.cfg.DBPath, path); err != nil {
		return "", err
	}
	if err := verifySnapshot(path); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	if err := s.prune(); err != nil {
		// A failed prune never fails the snapshot that just succeeded.
		log.Printf("backup: prune failed: %v", err)
	}

	return path, nil
}

// ListSnapshots returns the snapshots on disk, newest first.
func (s *Service) ListSnapshots() ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("backup: failed to read snapshot directory: %w", err)
	}

	var snapshots []SnapshotInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, SnapshotInfo{
			Path:      filepath.Join(s.cfg.Dir, entry.Name()),
			Size:      info.Size(),
			Timestamp: info.ModTime(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.After(snapshots[j].Timestamp)
	})
	return snapshots, nil
}

// Restore replaces the sessions database with a snapshot. The server must
// not be running against the database during a restore.
func (s *Service) Restore(snapshotPath string) error {
	if err := verifySnapshot(snapshotPath); err != nil {
		return err
	}
	if err := copyFile(snapshotPath, s.cfg.DBPath); err != nil {
		return fmt.Errorf("backup: restore failed: %w", err)
	}
	// Stale WAL sidecars would shadow the restored file.
	_ = os.Remove(s.cfg.DBPath + "-wal")
	_ = os.Remove(s.cfg.DBPath + "-shm")
	log.Printf("backup: sessions database restored from %s", snapshotPath)
	return nil
}

// prune deletes all but the newest Keep snapshots.
func (s *Service) prune() error {
	snapshots, err := s.ListSnapshots()
	if err != nil {
		return err
	}
	if len(snapshots) <= s.cfg.Keep {
		return nil
	}

	var lastErr error
	for _, snap := range snapshots[s.cfg.Keep:] {
		if err := os.Remove(snap.Path); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
