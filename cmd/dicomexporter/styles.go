package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/mrsinham/dicomexporter/internal/dicom"
	"github.com/mrsinham/dicomexporter/internal/exporter"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

type row struct {
	label, value string
}

func renderRows(title string, rows []row) string {
	lines := []string{titleStyle.Render(title), ""}
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(r.label), valueStyle.Render(r.value)))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderSummary(res *exporter.Result) string {
	rows := []row{
		{"Output", res.Path},
		{"Format", res.Format.String()},
		{"Dimensions", fmt.Sprintf("%d x %d x %d", res.Dims[0], res.Dims[1], res.Dims[2])},
		{"Spacing", formatVec(res.Spacing)},
		{"Origin", formatVec(res.Origin)},
		{"Scalars", res.Kind.String()},
	}
	if res.Resliced {
		rows = append(rows, row{"Resliced", "yes"})
	}
	if res.Packed > 0 || res.Gzipped > 0 {
		rows = append(rows, row{"Blobs", fmt.Sprintf("%d packed, %d gzipped", res.Packed, res.Gzipped)})
	}
	if res.Replaced {
		rows = append(rows, row{"Replaced", "previous output removed"})
	}
	rows = append(rows, row{"Size", humanize.Bytes(uint64(res.Bytes))})
	return renderRows("Conversion complete", rows)
}

func renderSynthSummary(s *dicom.SyntheticSeries) string {
	var total uint64
	for _, f := range s.Files {
		total += fileSize(f)
	}
	return renderRows("Synthetic series written", []row{
		{"Directory", s.Dir},
		{"Modality", string(s.Modality)},
		{"Plane", string(s.Plane)},
		{"Slices", fmt.Sprintf("%d (%d x %d)", s.Dims[2], s.Dims[0], s.Dims[1])},
		{"Spacing", fmt.Sprintf("%g mm in-plane, %g mm between slices", s.PixelSpacing, s.SliceSpacing)},
		{"Window", fmt.Sprintf("center %g, width %g", s.WindowCenter, s.WindowWidth)},
		{"Series UID", s.SeriesUID},
		{"Size", humanize.Bytes(total)},
	})
}

func formatVec(v [3]float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return strings.Join(parts, ", ")
}
