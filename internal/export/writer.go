package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/event-content-agent/internal/batch"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/pkg/logger"
)

// ErrNoContent is returned when there is nothing to export
var ErrNoContent = errors.New("no content to export")

// Format is an export file format
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
)

// TimestampLayout names export files, e.g. 20250601_090000
const TimestampLayout = "20060102_150405"

const (
	exportPrefix = "social_content_export_"
	runPrefix    = "social_content_"
)

// ParseFormats validates format names; "text" is accepted for txt
func ParseFormats(names []string) ([]Format, error) {
	seen := map[Format]bool{}
	var out []Format
	for _, name := range names {
		f := Format(strings.ToLower(strings.TrimSpace(name)))
		if f == "text" {
			f = FormatText
		}
		switch f {
		case FormatJSON, FormatCSV, FormatText:
		case "":
			continue
		default:
			return nil, fmt.Errorf("unknown export format %q (want json, csv or txt)", name)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Writer saves exports into a directory
type Writer struct {
	dir string
	now func() time.Time
	log *logger.Logger
}

// NewWriter creates a writer rooted at dir
func NewWriter(dir string, log *logger.Logger) *Writer {
	return &Writer{
		dir: dir,
		now: time.Now,
		log: log.WithComponent("export"),
	}
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// SaveAll writes social_content_export_<ts>.<ext> for each format and returns the paths
func (w *Writer) SaveAll(items []*models.ContentItem, md batch.Metadata, formats []Format, ts time.Time) ([]string, error) {
	if len(items) == 0 {
		return nil, ErrNoContent
	}
	return w.save(exportPrefix, items, md, formats, ts)
}

// SaveRun writes the JSON and text files produced at the end of a run
func (w *Writer) SaveRun(items []*models.ContentItem, md batch.Metadata, formats []Format, ts time.Time) ([]string, error) {
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatText}
	}
	return w.save(runPrefix, items, md, formats, ts)
}

func (w *Writer) save(prefix string, items []*models.ContentItem, md batch.Metadata, formats []Format, ts time.Time) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ordered := append([]*models.ContentItem(nil), items...)
	batch.SortByPriority(ordered)

	base := prefix + ts.Format(TimestampLayout)
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := filepath.Join(w.dir, base+"."+string(f))
		err := writeFile(path, func(out io.Writer) error {
			switch f {
			case FormatJSON:
				return WriteJSON(out, NewDocument(ordered, md, w.now()))
			case FormatCSV:
				return WriteCSV(out, ordered)
			case FormatText:
				return WriteText(out, ordered, w.now())
			default:
				return fmt.Errorf("unknown export format %q", f)
			}
		})
		if err != nil {
			return paths, err
		}

		w.log.Info().
			Str("path", path).
			Str("format", string(f)).
			Int("items", len(ordered)).
			Msg("Saved export")
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FileInfo describes a saved export
type FileInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// RecentExports lists export files in the output directory, newest first
func (w *Writer) RecentExports(limit int) ([]FileInfo, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, runPrefix) {
			continue
		}
		switch filepath.Ext(name) {
		case ".json", ".csv", ".txt":
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:     name,
			Path:     filepath.Join(w.dir, name),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(files, func(a, b int) bool {
		if files[a].Modified.Equal(files[b].Modified) {
			return files[a].Name > files[b].Name
		}
		return files[a].Modified.After(files[b].Modified)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}
