package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mrsinham/dicomexporter/internal/config"
	"github.com/mrsinham/dicomexporter/internal/vtk"
)

func TestLoadConfig_Precedence(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "exporter.yaml")
	content := "compress: false\nworkers: 2\nblock_size: 1MB\nlog:\n  level: info\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want func(*config.Config)
	}{
		{
			name: "defaults only",
			args: nil,
			want: func(c *config.Config) {},
		},
		{
			name: "file over defaults",
			args: []string{"--config", cfgPath},
			want: func(c *config.Config) {
				c.Compress = false
				c.Workers = 2
				c.BlockSize = "1MB"
				c.Log.Level = "info"
			},
		},
		{
			name: "flags over file",
			args: []string{"--config", cfgPath, "--workers", "8", "--no-compress=false", "--log-level", "debug"},
			want: func(c *config.Config) {
				c.Compress = true
				c.Workers = 8
				c.BlockSize = "1MB"
				c.Log.Level = "debug"
			},
		},
		{
			name: "flags over defaults",
			args: []string{"--overwrite", "--convert-12-bits", "--block-size", "64KB", "--log-file", "x.log"},
			want: func(c *config.Config) {
				c.Overwrite = true
				c.ConvertTo12Bit = true
				c.BlockSize = "64KB"
				c.Log.File = "x.log"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newConvertFlags(io.Discard)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			got, err := loadConfig(fs)
			if err != nil {
				t.Fatalf("loadConfig failed: %v", err)
			}
			want := config.Default()
			tt.want(&want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no arguments", nil, "expected <dicom_directory> <output_path>"},
		{"too many arguments", []string{"a", "b", "c"}, "got 3 argument(s)"},
		{"unknown flag", []string{"--resample", "a", "b.vti"}, "unknown flag"},
		{"bad block size", []string{"--block-size", "0B", "a", "b.vti"}, "block size must be > 0"},
		{"bad log level", []string{"--log-level", "loud", "a", "b.vti"}, "invalid log level"},
		{"missing config", []string{"--config", "/nonexistent/c.yaml", "a", "b.vti"}, "read config"},
		{"synth positional", []string{"synth", "extra"}, "no positional arguments"},
		{"synth modality", []string{"synth", "--modality", "PET"}, "PET"},
		{"synth origin", []string{"synth", "--origin", "1,2"}, "--origin needs 3 values"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != exitUsage {
				t.Errorf("exit code = %d, want %d\nstderr: %s", code, exitUsage, stderr.String())
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("stderr does not mention %q:\n%s", tt.want, stderr.String())
			}
		})
	}
}

func TestRun_HelpAndVersion(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"-h"}, {"--version"}, {"synth", "--help"}} {
		var stdout bytes.Buffer
		if code := run(args, &stdout, io.Discard); code != exitOK {
			t.Errorf("run(%v) = %d, want %d", args, code, exitOK)
		}
		if !strings.Contains(stdout.String(), "dicomexporter") {
			t.Errorf("run(%v) printed %q", args, stdout.String())
		}
	}
}

func TestRun_SynthThenConvert(t *testing.T) {
	dir := t.TempDir()
	series := filepath.Join(dir, "series")
	out := filepath.Join(dir, "out.vtkjs")

	var stdout, stderr bytes.Buffer
	code := run([]string{"synth", "--output", series, "--modality", "CT", "--plane", "coronal",
		"--slices", "3", "--rows", "4", "--columns", "5", "--seed", "7"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("synth exit code = %d\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Synthetic series written") {
		t.Errorf("synth summary missing:\n%s", stdout.String())
	}

	stdout.Reset()
	if code := run([]string{series, out, "--workers", "1"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("convert exit code = %d\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Conversion complete") {
		t.Errorf("convert summary missing:\n%s", stdout.String())
	}

	buf, err := vtk.Read(out)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if want := [3]int{5, 3, 4}; buf.Dims != want {
		t.Errorf("Dims = %v, want %v", buf.Dims, want)
	}

	// Second run without --overwrite fails and keeps the output.
	stderr.Reset()
	if code := run([]string{"--quiet", series, out}, io.Discard, &stderr); code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr.String(), "already exists") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(out, vtk.IndexName)); err != nil {
		t.Errorf("existing output was touched: %v", err)
	}
}

func TestRun_QuietPrintsNothing(t *testing.T) {
	dir := t.TempDir()
	series := filepath.Join(dir, "series")

	var stdout bytes.Buffer
	if code := run([]string{"synth", "-q", "--output", series, "--slices", "2", "--rows", "2", "--columns", "2"}, &stdout, io.Discard); code != exitOK {
		t.Fatalf("synth exit code = %d", code)
	}
	if code := run([]string{"-q", series, filepath.Join(dir, "out.vti")}, &stdout, io.Discard); code != exitOK {
		t.Fatalf("convert exit code = %d", code)
	}
	if stdout.Len() != 0 {
		t.Errorf("quiet run printed:\n%s", stdout.String())
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "exporter.log")
	logger, closeLog, err := newLogger(config.LogConfig{Level: "INFO", File: path, MaxSizeMB: 1}, io.Discard)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	logger.Info().Msg("hello")
	logger.Debug().Msg("filtered")
	if err := closeLog(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) || strings.Contains(string(data), "filtered") {
		t.Errorf("unexpected log content: %s", data)
	}
}
