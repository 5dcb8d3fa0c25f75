package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"deodexer/internal/fileutil"
)

// Encode writes doc to w in the given format.
func Encode(w io.Writer, doc Document, format string) error {
	format, err := NormalizeFormat(format)
	if err != nil {
		return err
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return encodeCSV(w, doc)
	}
}

func encodeCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file", "status", "duration", "exit_code", "output_path", "error"}); err != nil {
		return err
	}
	for _, entry := range doc.Results {
		record := []string{
			entry.File,
			entry.Status,
			strconv.FormatFloat(entry.Duration, 'f', 3, 64),
			strconv.Itoa(entry.ExitCode),
			entry.OutputPath,
			"",
		}
		if entry.Status != "success" {
			record[5] = firstLine(entry.Diagnostics)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	for _, path := range doc.Cancelled {
		if err := cw.Write([]string{path, "cancelled", "0.000", "", "", ""}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAll writes doc once per format into dir and returns the written paths.
func WriteAll(dir string, doc Document, formats []string) ([]string, error) {
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		normalized, err := NormalizeFormat(format)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, FileName(normalized, doc.GeneratedAt))
		if err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
			return Encode(w, doc, normalized)
		}); err != nil {
			return paths, fmt.Errorf("write %s report: %w", normalized, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
