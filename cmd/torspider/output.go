package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/torspider/internal/config"
	"github.com/nao1215/torspider/internal/report"
)

// writeReport writes r to cfg.ReportFile, or stdout when it is empty.
func writeReport(cfg *config.Config, r *report.Report) error {
	if cfg.ReportFile == "" {
		return renderReport(os.Stdout, cfg, r)
	}

	if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports list every crawled site, so keep them owner-readable only.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := renderReport(f, cfg, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// renderReport picks the writer for the configured format.
func renderReport(w io.Writer, cfg *config.Config, r *report.Report) error {
	var rw report.Writer
	switch {
	case cfg.JSONReport:
		rw = report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		rw = report.NewMarkdownWriter(w)
	default:
		rw = report.NewSimpleWriter(w)
	}
	_, err := rw.Write(r)
	return err
}
