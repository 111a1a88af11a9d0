// Package batch converts every image in a directory or .zip archive to PNG
// files in an output directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deepteams/webp2png/internal/logging"
	"github.com/deepteams/webp2png/internal/source"
)

// Converter is the transcoding stage used by Run. *webp2png.Converter
// satisfies it.
type Converter interface {
	ConvertContext(ctx context.Context, input []byte) ([]byte, error)
}

// DefaultExtensions are taken when Options.Extensions is empty.
var DefaultExtensions = []string{".webp", ".png", ".jpg", ".jpeg"}

// Options configures Run.
type Options struct {
	// Workers bounds concurrent conversions. Values < 1 mean 1.
	Workers int

	// Extensions lists the lowercase extensions to convert.
	Extensions []string

	// Overwrite replaces existing outputs; by default they are skipped.
	Overwrite bool

	// MaxInputBytes caps a single input file (0 = source.DefaultMaxEntryBytes).
	MaxInputBytes int64

	Logger *zap.Logger
}

// Status is the outcome of one item.
type Status int

const (
	Converted Status = iota
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Converted:
		return "converted"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ItemResult records one input.
type ItemResult struct {
	Input       string // path on disk or inside the archive
	Output      string
	Status      Status
	InputBytes  int64
	OutputBytes int64
	Elapsed     time.Duration
	Err         error
}

// Summary holds the outcome of a batch run. Items are in source order and
// include only items that were scheduled before cancellation.
type Summary struct {
	Converted int
	Skipped   int
	Failed    int
	Items     []ItemResult
}

// Total returns the number of items processed.
func (s Summary) Total() int {
	return s.Converted + s.Skipped + s.Failed
}

// HasFailures reports whether any item failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

type job struct {
	entry  source.Entry
	output string
}

// Run converts every matching file in src into dst/<stem>.png. A failed item
// is recorded in the summary and does not stop the others. When ctx is
// canceled no further items are started and conversions still running are
// abandoned: they are recorded as Failed with ctx.Err() and leave no output.
// The partial summary is returned with ctx.Err().
func Run(ctx context.Context, conv Converter, src, dst string, opts Options) (Summary, error) {
	log := logging.OrNop(opts.Logger).With(zap.String("source", src))
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	workers := max(opts.Workers, 1)

	set, err := source.Open(src, exts)
	if err != nil {
		return Summary{}, fmt.Errorf("batch: %w", err)
	}
	defer set.Close()

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return Summary{}, fmt.Errorf("batch: creating %s: %w", dst, err)
	}

	jobs := plan(set.Entries, dst)
	log.Info("batch started",
		zap.Int("items", len(jobs)),
		zap.Bool("archive", set.Archive),
		zap.Int("workers", workers))

	results := make([]*ItemResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Go may block on the limit past a cancel.
			if ctx.Err() != nil {
				return nil
			}
			results[i] = process(ctx, conv, j, opts, log)
			return nil
		})
	}
	_ = g.Wait()

	var sum Summary
	for _, r := range results {
		if r == nil {
			continue
		}
		switch r.Status {
		case Converted:
			sum.Converted++
		case Skipped:
			sum.Skipped++
		case Failed:
			sum.Failed++
		}
		sum.Items = append(sum.Items, *r)
	}
	log.Info("batch finished",
		zap.Int("converted", sum.Converted),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed))

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

// plan assigns each entry an output path. Stems that collide, such as
// a.webp and a.jpg or two archive folders holding 01.webp, get -1, -2, ...
// suffixes in source order.
func plan(entries []source.Entry, dst string) []job {
	used := make(map[string]bool, len(entries))
	jobs := make([]job, 0, len(entries))
	for _, e := range entries {
		stem := e.Stem()
		name := stem + ".png"
		for n := 1; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s-%d.png", stem, n)
		}
		used[strings.ToLower(name)] = true
		jobs = append(jobs, job{entry: e, output: filepath.Join(dst, name)})
	}
	return jobs
}

func process(ctx context.Context, conv Converter, j job, opts Options, log *zap.Logger) *ItemResult {
	start := time.Now()
	r := &ItemResult{Input: j.entry.Path, Output: j.output, InputBytes: j.entry.Size}
	defer func() { r.Elapsed = time.Since(start) }()

	if !opts.Overwrite {
		if _, err := os.Stat(j.output); err == nil {
			r.Status = Skipped
			log.Debug("skipped existing output", zap.String("output", j.output))
			return r
		} else if !errors.Is(err, os.ErrNotExist) {
			return fail(r, log, err)
		}
	}

	data, err := j.entry.ReadAll(opts.MaxInputBytes)
	if err != nil {
		return fail(r, log, err)
	}
	r.InputBytes = int64(len(data))

	out, err := conv.ConvertContext(ctx, data)
	if err != nil {
		return fail(r, log, err)
	}
	if err := writeFile(j.output, out); err != nil {
		return fail(r, log, err)
	}
	r.Status = Converted
	r.OutputBytes = int64(len(out))
	log.Debug("converted",
		zap.String("input", j.entry.Path),
		zap.String("output", j.output),
		zap.Int64("bytes", r.OutputBytes))
	return r
}

func fail(r *ItemResult, log *zap.Logger, err error) *ItemResult {
	r.Status = Failed
	r.Err = err
	log.Warn("conversion failed", zap.String("input", r.Input), zap.Error(err))
	return r
}

// writeFile writes data to a temp file next to dest and renames it into
// place, so a failed write never leaves a truncated PNG behind.
func writeFile(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".webp2png-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := tmp.Chmod(0o644)
	if writeErr == nil {
		_, writeErr = tmp.Write(data)
	}
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", dest, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
