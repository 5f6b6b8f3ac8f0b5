// Package record implements the append-only crawl log that hands crawl
// results over to materialization.
package record

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bredec/policy-harvester/internal/crawl"
)

// header is the single header row written when the log file is new.
var header = []string{
	"url", "file_path", "include", "found_links_count",
	"definite_links", "probable_links", "timestamp",
}

// Recorder appends processed-URL outcomes to a CSV log. Rows are never
// rewritten; the log is the sole hand-off artifact between crawling and
// materialization.
type Recorder struct {
	path string
}

// New creates a Recorder writing to path, creating parent directories as
// needed.
func New(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &Recorder{path: path}, nil
}

// Append writes one row, emitting the header first when the log is new or
// empty. Link lists are JSON-encoded into their columns.
func (r *Recorder) Append(row crawl.LogRow) error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open crawl log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat crawl log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	definite, err := json.Marshal(emptyIfNil(row.DefiniteLinks))
	if err != nil {
		return fmt.Errorf("encode definite links: %w", err)
	}
	probable, err := json.Marshal(emptyIfNil(row.ProbableLinks))
	if err != nil {
		return fmt.Errorf("encode probable links: %w", err)
	}

	record := []string{
		row.URL,
		row.FilePath,
		strconv.FormatBool(row.Include),
		strconv.Itoa(row.FoundLinksCount),
		string(definite),
		string(probable),
		row.TimestampID,
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}
	return nil
}

// Rows reads every logged row. Rows that cannot be decoded are skipped
// rather than failing the whole read.
func (r *Recorder) Rows() ([]crawl.LogRow, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open crawl log: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	// Tolerate rows with the wrong field count: they are skipped below
	// like any other undecodable row instead of failing the whole read.
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read crawl log: %w", err)
	}

	var rows []crawl.LogRow
	for i, rec := range records {
		if len(rec) != len(header) {
			continue
		}
		if i == 0 && rec[0] == header[0] {
			continue
		}
		row, derr := decodeRow(rec)
		if derr != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeRow(rec []string) (crawl.LogRow, error) {
	include, err := strconv.ParseBool(rec[2])
	if err != nil {
		return crawl.LogRow{}, fmt.Errorf("parse include: %w", err)
	}
	count, err := strconv.Atoi(rec[3])
	if err != nil {
		return crawl.LogRow{}, fmt.Errorf("parse found_links_count: %w", err)
	}
	var definite, probable []string
	if err := json.Unmarshal([]byte(rec[4]), &definite); err != nil {
		return crawl.LogRow{}, fmt.Errorf("parse definite_links: %w", err)
	}
	if err := json.Unmarshal([]byte(rec[5]), &probable); err != nil {
		return crawl.LogRow{}, fmt.Errorf("parse probable_links: %w", err)
	}
	return crawl.LogRow{
		URL:             rec[0],
		FilePath:        rec[1],
		Include:         include,
		FoundLinksCount: count,
		DefiniteLinks:   definite,
		ProbableLinks:   probable,
		TimestampID:     rec[6],
	}, nil
}

func emptyIfNil(links []string) []string {
	if links == nil {
		return []string{}
	}
	return links
}
