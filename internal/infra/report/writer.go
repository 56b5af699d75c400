package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/bryanwahyu/vulngate/internal/domain/scans"
)

// maxSuffix bounds the search for a free artifact name.
const maxSuffix = 1000

// Artifact is one file written for a scan.
type Artifact struct {
	Name string
	Path string
	Data []byte
}

// Writer writes report artifacts under Dir. A name that is already taken on
// disk, by an earlier output of the same scanner or by another job in the same
// second, gets a numeric suffix (<stem>_2, <stem>_3, ...); files are never
// overwritten. Use a Writer through a pointer.
type Writer struct {
	Fs  afero.Fs
	Dir string

	mu sync.Mutex
}

// NewWriter writes to the OS filesystem.
func NewWriter(dir string) *Writer {
	return &Writer{Fs: afero.NewOsFs(), Dir: dir}
}

// WriteScan writes the raw output, a findings table and a SARIF file for one
// scanner. The three files share one stem.
func (w *Writer) WriteScan(image string, at time.Time, rep *scans.ScanReport, raw []byte) ([]Artifact, error) {
	var table bytes.Buffer
	if err := WriteFindings(&table, rep); err != nil {
		return nil, err
	}
	var sarifBuf bytes.Buffer
	if err := WriteSARIF(&sarifBuf, rep); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	first, stem, err := w.create(scans.ArtifactStem(image, at, rep.Scanner()), "json", raw)
	if err != nil {
		return nil, err
	}
	out := []Artifact{first}
	for _, f := range []struct {
		ext  string
		data []byte
	}{
		{"txt", table.Bytes()},
		{"sarif", sarifBuf.Bytes()},
	} {
		a, _, err := w.create(stem, f.ext, f.data)
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

// WriteSummary writes <image>_<timestamp>_summary.json.
func (w *Writer) WriteSummary(image string, at time.Time, s Summary) (Artifact, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, s); err != nil {
		return Artifact{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	a, _, err := w.create(scans.SummaryStem(image, at), "json", buf.Bytes())
	return a, err
}

// create writes <stem>.<ext>, or the first free <stem>_N.<ext>, and returns
// the stem it used.
func (w *Writer) create(stem, ext string, data []byte) (Artifact, string, error) {
	if err := w.Fs.MkdirAll(w.Dir, 0o755); err != nil {
		return Artifact{}, "", fmt.Errorf("report: mkdir %s: %w", w.Dir, err)
	}
	for n := 1; n <= maxSuffix; n++ {
		s := stem
		if n > 1 {
			s = fmt.Sprintf("%s_%d", stem, n)
		}
		name := s + "." + ext
		path := filepath.Join(w.Dir, name)

		f, err := w.Fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return Artifact{}, "", fmt.Errorf("report: write %s: %w", path, err)
		}
		_, werr := f.Write(data)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return Artifact{}, "", fmt.Errorf("report: write %s: %w", path, werr)
		}
		return Artifact{Name: name, Path: path, Data: data}, s, nil
	}
	return Artifact{}, "", fmt.Errorf("report: no free name for %s.%s in %s", stem, ext, w.Dir)
}
