package retriever

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row is one corpus line: file_name,meta_data,content,last_updated.
type Row struct {
	Filename    string
	Metadata    string
	Content     string
	LastUpdated string
}

var corpusColumns = []string{"file_name", "meta_data", "content", "last_updated"}

// ErrBadHeader is returned when the corpus header lacks a required column.
var ErrBadHeader = errors.New("corpus header must contain file_name, meta_data, content")

// LoadCSV parses a corpus. Columns are located by header name so extra
// columns (such as a leading index) are tolerated.
func LoadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading corpus header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range corpusColumns[:3] {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrBadHeader, col)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading corpus line %d: %w", line, err)
		}
		rows = append(rows, Row{
			Filename:    field(rec, "file_name"),
			Metadata:    field(rec, "meta_data"),
			Content:     field(rec, "content"),
			LastUpdated: field(rec, "last_updated"),
		})
	}
	return rows, nil
}

// LoadCSVFile opens path and parses it with LoadCSV.
func LoadCSVFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}
