// Package materialize turns classified, policy-bearing raw captures into
// the versioned output corpus, one folder per policy title.
package materialize

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/capture"
	"github.com/bredec/policy-harvester/internal/crawl"
)

// defaultTitle is used when the classifier found policy content but could
// not extract a title.
const defaultTitle = "Untitled Policy"

// stagingPrefix marks folders still being assembled. They are never part
// of the corpus and any leftover from a crash is swept on startup.
const stagingPrefix = ".staging_"

// Stats summarizes one materialization run.
type Stats struct {
	Materialized int
	Skipped      int
	Failed       int
}

// Materializer consumes crawl log rows and raw captures and writes the
// policy corpus. At most one active folder exists per distinct title; an
// older folder for the same title is deleted when a newer capture of that
// title is materialized.
type Materializer struct {
	captures   *capture.Store
	classifier crawl.Classifier
	corpusDir  string
	logger     *zap.Logger
}

// New creates a Materializer writing into corpusDir, sweeping any staging
// folders a crashed run left behind.
func New(captures *capture.Store, classifier crawl.Classifier, corpusDir string, logger *zap.Logger) (*Materializer, error) {
	if err := os.MkdirAll(corpusDir, 0o750); err != nil {
		return nil, fmt.Errorf("create corpus dir %s: %w", corpusDir, err)
	}
	entries, err := os.ReadDir(corpusDir)
	if err != nil {
		return nil, fmt.Errorf("scan corpus dir %s: %w", corpusDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		if rerr := os.RemoveAll(filepath.Join(corpusDir, e.Name())); rerr != nil {
			logger.Warn("Could not remove stale staging folder",
				zap.String("folder", e.Name()), zap.Error(rerr))
			continue
		}
		logger.Info("Removed stale staging folder", zap.String("folder", e.Name()))
	}
	return &Materializer{
		captures:   captures,
		classifier: classifier,
		corpusDir:  corpusDir,
		logger:     logger,
	}, nil
}

// Run materializes every row whose raw capture exists on disk. A failure
// for one capture never stops the run.
func (m *Materializer) Run(ctx context.Context, rows []crawl.LogRow) Stats {
	var stats Stats
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			m.logger.Info("Materialization interrupted", zap.Error(err))
			return stats
		}
		if !capture.ValidTimestampID(row.TimestampID) {
			stats.Skipped++
			continue
		}
		mdPath := filepath.Join(m.captures.Root(), row.FilePath)
		if _, err := os.Stat(mdPath); err != nil {
			m.logger.Warn("Skipping row without capture file",
				zap.String("url", row.URL), zap.String("file", row.FilePath))
			stats.Skipped++
			continue
		}

		written, err := m.MaterializeCapture(ctx, row.TimestampID, row.URL)
		switch {
		case err != nil:
			m.logger.Error("Materialization failed for capture",
				zap.String("timestamp_id", row.TimestampID),
				zap.String("url", row.URL),
				zap.Error(err))
			stats.Failed++
		case written:
			stats.Materialized++
		default:
			stats.Skipped++
		}
	}
	return stats
}

// MaterializeCapture classifies one capture and, if it is policy-bearing,
// writes or supersedes its corpus folder. Returns true when a folder was
// written.
func (m *Materializer) MaterializeCapture(ctx context.Context, timestampID, sourceURL string) (bool, error) {
	body, err := m.captures.MarkdownBody(timestampID)
	if err != nil {
		return false, err
	}

	verdict, err := m.classifier.ClassifyDocument(ctx, body, sourceURL)
	if err != nil {
		return false, fmt.Errorf("classify capture: %w", err)
	}
	if !verdict.ContainsPolicy {
		m.logger.Debug("Capture is not policy-bearing",
			zap.String("timestamp_id", timestampID),
			zap.String("reasoning", verdict.Reasoning))
		return false, nil
	}

	title := verdict.PolicyTitle
	if strings.TrimSpace(title) == "" {
		title = defaultTitle
	}
	slug := Slugify(title)
	folderName := slug + "_" + timestampID

	older, newerExists := m.findExistingVersion(slug, timestampID)
	if newerExists {
		m.logger.Info("Existing corpus version is newer or equal, skipping",
			zap.String("title", title),
			zap.String("timestamp_id", timestampID))
		return false, nil
	}

	// Stage the full folder first. Only once every copy has succeeded is
	// the older version deleted and the staging dir renamed into place, so
	// a mid-copy failure leaves any prior version untouched.
	staging := filepath.Join(m.corpusDir, stagingPrefix+folderName)
	if err := m.stage(staging, timestampID, body); err != nil {
		os.RemoveAll(staging)
		return false, err
	}

	for _, old := range older {
		if err := os.RemoveAll(filepath.Join(m.corpusDir, old)); err != nil {
			os.RemoveAll(staging)
			return false, fmt.Errorf("remove superseded folder %s: %w", old, err)
		}
		m.logger.Info("Superseded older corpus version",
			zap.String("title", title), zap.String("folder", old))
	}

	target := filepath.Join(m.corpusDir, folderName)
	if err := os.Rename(staging, target); err != nil {
		os.RemoveAll(staging)
		return false, fmt.Errorf("rename staged folder: %w", err)
	}

	m.logger.Info("Materialized policy",
		zap.String("title", title),
		zap.String("folder", folderName))
	return true, nil
}

// stage writes content.md, the filtered content.txt, and the capture's
// images into a staging directory.
func (m *Materializer) stage(staging, timestampID, body string) error {
	os.RemoveAll(staging)
	if err := os.MkdirAll(staging, 0o750); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	if err := copyFile(
		filepath.Join(m.captures.Root(), timestampID+".md"),
		filepath.Join(staging, "content.md"),
	); err != nil {
		return fmt.Errorf("copy markdown artifact: %w", err)
	}

	text := FilterText(body)
	if err := os.WriteFile(filepath.Join(staging, "content.txt"), []byte(text), 0o600); err != nil {
		return fmt.Errorf("write text artifact: %w", err)
	}

	imageDir := filepath.Join(m.captures.Root(), timestampID)
	entries, err := os.ReadDir(imageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read image dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(
			filepath.Join(imageDir, e.Name()),
			filepath.Join(staging, e.Name()),
		); err != nil {
			return fmt.Errorf("copy image %s: %w", e.Name(), err)
		}
	}
	return nil
}

// findExistingVersion scans the corpus for folders of the same title slug.
// It returns the folders older than timestampID, and whether a newer or
// equal version already exists. Timestamps compare lexically, which is
// sound because ids are fixed-width.
func (m *Materializer) findExistingVersion(slug, timestampID string) (older []string, newerExists bool) {
	entries, err := os.ReadDir(m.corpusDir)
	if err != nil {
		m.logger.Warn("Could not scan corpus dir", zap.Error(err))
		return nil, false
	}
	prefix := slug + "_"
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		existingTS := strings.TrimPrefix(e.Name(), prefix)
		if !capture.ValidTimestampID(existingTS) {
			continue
		}
		if existingTS >= timestampID {
			newerExists = true
			continue
		}
		older = append(older, e.Name())
	}
	return older, newerExists
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
