// File path: internal/corpus/loader.go
package corpus

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/nicodishanthj/accelmatch/internal/common"
)

// LoadCSV reads one supplier CSV into ordered rows. The first record is the
// header; column names are lowercased and trimmed. Files that are not valid
// UTF-8 are decoded as Windows-1252, matching the exports this service
// ingests.
func LoadCSV(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		common.Logger().Info("corpus: csv not valid utf-8, decoding as windows-1252", "path", path)
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode csv %s: %w", path, err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header %s: %w", path, err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %s: %w", path, err)
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			if i < len(record) {
				row[column] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadCSVIfPresent is LoadCSV for optional seed files: a missing file
// yields no rows rather than an error.
func LoadCSVIfPresent(path string) ([]Row, error) {
	rows, err := LoadCSV(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return rows, err
}
