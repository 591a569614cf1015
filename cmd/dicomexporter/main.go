package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/mrsinham/dicomexporter/internal/config"
	"github.com/mrsinham/dicomexporter/internal/exporter"
)

// version is set at build time via -ldflags
var version = "dev"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "synth" {
		return runSynth(args[1:], stdout, stderr)
	}
	return runConvert(args, stdout, stderr)
}

func newConvertFlags(stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("dicomexporter", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {}

	fs.Bool("no-compress", false, "Disable compression (zlib blocks in .vti, gzip blobs in .vtkjs)")
	fs.Bool("convert-12-bits", false, "Pack 12-bit .vtkjs scalars into 3 bytes per 2 samples")
	fs.Bool("overwrite", false, "Replace an existing output")
	fs.String("block-size", "10MB", "Compression block size for .vti output (e.g. '1MB', '512KB')")
	fs.Int("workers", 0, fmt.Sprintf("Parallel post-processing workers (default: %d = CPU cores)", runtime.NumCPU()))
	fs.String("config", "", "Load settings from a YAML or TOML file")
	fs.String("log-level", "", "Log level: debug, info, warn, error (default: warn)")
	fs.String("log-file", "", "Write logs to a rotating file instead of stderr")
	fs.BoolP("quiet", "q", false, "Only print errors")
	fs.Bool("version", false, "Show version")
	fs.BoolP("help", "h", false, "Show help message")
	return fs
}

// applyFlags overlays the flags that were explicitly set on cfg.
func applyFlags(cfg *config.Config, fs *pflag.FlagSet) error {
	if fs.Changed("no-compress") {
		v, _ := fs.GetBool("no-compress")
		cfg.Compress = !v
	}
	if fs.Changed("convert-12-bits") {
		cfg.ConvertTo12Bit, _ = fs.GetBool("convert-12-bits")
	}
	if fs.Changed("overwrite") {
		cfg.Overwrite, _ = fs.GetBool("overwrite")
	}
	if fs.Changed("block-size") {
		cfg.BlockSize, _ = fs.GetString("block-size")
	}
	if fs.Changed("workers") {
		cfg.Workers, _ = fs.GetInt("workers")
	}
	if fs.Changed("log-level") {
		cfg.Log.Level, _ = fs.GetString("log-level")
	}
	if fs.Changed("log-file") {
		cfg.Log.File, _ = fs.GetString("log-file")
	}
	return cfg.Validate()
}

// loadConfig builds the effective settings: defaults, then the --config
// file, then explicit flags.
func loadConfig(fs *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if path, _ := fs.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := applyFlags(&cfg, fs); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func usageError(stderr io.Writer, format string, args ...interface{}) int {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	fmt.Fprintln(stderr, "Run 'dicomexporter --help' for usage information.")
	return exitUsage
}

func runConvert(args []string, stdout, stderr io.Writer) int {
	fs := newConvertFlags(stderr)
	if err := fs.Parse(args); err != nil {
		return usageError(stderr, "%v", err)
	}

	if help, _ := fs.GetBool("help"); help {
		printHelp(stdout)
		return exitOK
	}
	if v, _ := fs.GetBool("version"); v {
		fmt.Fprintf(stdout, "dicomexporter %s\n", version)
		return exitOK
	}
	if fs.NArg() != 2 {
		return usageError(stderr, "expected <dicom_directory> <output_path>, got %d argument(s)", fs.NArg())
	}
	dicomDir, outputPath := fs.Arg(0), fs.Arg(1)

	cfg, err := loadConfig(fs)
	if err != nil {
		return usageError(stderr, "%v", err)
	}
	blockSize, err := cfg.BlockSizeBytes()
	if err != nil {
		return usageError(stderr, "--block-size: %v", err)
	}

	logger, closeLog, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return usageError(stderr, "%v", err)
	}
	defer closeLog()

	quiet, _ := fs.GetBool("quiet")
	out := stdout
	if quiet {
		out = io.Discard
	}

	conv := exporter.New(&logger)
	conv.Workers = cfg.Workers
	conv.ProgressCallback = func(done, total int) {
		if done == total {
			fmt.Fprintf(out, "  Post-processed %d blob(s)\n", total)
		}
	}

	fmt.Fprintf(out, "Converting %s -> %s\n", dicomDir, outputPath)
	res, err := conv.Convert(dicomDir, exporter.Target{
		Path:           outputPath,
		Overwrite:      cfg.Overwrite,
		Compress:       cfg.Compress,
		ConvertTo12Bit: cfg.ConvertTo12Bit,
		BlockSize:      blockSize,
	})
	if err != nil {
		logger.Error().Err(err).Str("kind", exporter.KindOf(err).String()).Msg("conversion failed")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	fmt.Fprintln(out, renderSummary(res))
	return exitOK
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "dicomexporter - Convert a DICOM series to a VTK volume")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  dicomexporter [options] <dicom_directory> <output_path>")
	fmt.Fprintln(w, "  dicomexporter synth [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The output format follows the extension of <output_path>:")
	fmt.Fprintln(w, "  .vti     VTK XML ImageData file")
	fmt.Fprintln(w, "  .vtkjs   vtk.js directory (index.json + data/ blobs)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fs := newConvertFlags(io.Discard)
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintln(w, "  --config accepts .yaml/.yml or .toml files with the keys compress,")
	fmt.Fprintln(w, "  convert_12_bits, overwrite, block_size, workers and a log section")
	fmt.Fprintln(w, "  (level, file, max_size_mb, max_age_days). Flags given on the command")
	fmt.Fprintln(w, "  line override the file.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  # Convert a series to a compressed .vti file")
	fmt.Fprintln(w, "  dicomexporter ./series volume.vti")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # vtk.js container with 12-bit packing, replacing any previous output")
	fmt.Fprintln(w, "  dicomexporter --convert-12-bits --overwrite ./series volume.vtkjs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Generate a synthetic CT series, then convert it")
	fmt.Fprintln(w, "  dicomexporter synth --modality CT --slices 20 --output ./ct")
	fmt.Fprintln(w, "  dicomexporter ./ct ct.vtkjs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit codes:")
	fmt.Fprintln(w, "  0  success")
	fmt.Fprintln(w, "  1  conversion failed")
	fmt.Fprintln(w, "  2  invalid arguments or configuration")
}
