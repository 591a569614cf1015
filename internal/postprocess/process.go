package postprocess

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Options selects the per-file steps applied by ProcessDir.
type Options struct {
	Pack12   bool
	Compress bool

	// Workers bounds the number of files processed at once (default: NumCPU).
	// 1 processes files sequentially in lexical order.
	Workers int

	Logger *zerolog.Logger

	// ProgressCallback is called after each file is done, possibly from
	// several goroutines at once.
	ProgressCallback func(done, total int)
}

// Stats summarises a ProcessDir run.
type Stats struct {
	Files      int
	Packed     int
	Compressed int
}

// ProcessFile applies the enabled steps to one file: pack first, then compress.
func ProcessFile(path string, opts Options) error {
	if opts.Pack12 {
		if err := PackFile(path); err != nil {
			return err
		}
	}
	if opts.Compress {
		if err := CompressFile(path); err != nil {
			return err
		}
	}
	return nil
}

// ProcessDir applies ProcessFile to every regular file below dir and returns
// the first error encountered. Files are independent of each other.
func ProcessDir(dir string, opts Options) (Stats, error) {
	var stats Stats
	if !opts.Pack12 && !opts.Compress {
		return stats, nil
	}

	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(files)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var g errgroup.Group
	g.SetLimit(workers)

	var done atomic.Int64
	for _, path := range files {
		g.Go(func() error {
			logger.Debug().Str("file", path).Bool("pack12", opts.Pack12).Bool("gzip", opts.Compress).Msg("post-processing blob")
			if err := ProcessFile(path, opts); err != nil {
				return err
			}
			n := done.Add(1)
			if opts.ProgressCallback != nil {
				opts.ProgressCallback(int(n), len(files))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.Files = len(files)
	if opts.Pack12 {
		stats.Packed = len(files)
	}
	if opts.Compress {
		stats.Compressed = len(files)
	}
	return stats, nil
}
