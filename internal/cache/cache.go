// File path: internal/cache/cache.go
package cache

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// magic identifies the matrix file format. The payload is a row-major
// little-endian float32 matrix preceded by uint32 row and column counts.
var magic = [4]byte{'A', 'M', 'V', '1'}

// Pair is the on-disk snapshot of one corpus: a binary embedding matrix and
// a line-oriented text file, where line i is the exact text that produced
// matrix row i.
type Pair struct {
	vecPath  string
	textPath string
}

// NewPair builds a cache over the given matrix and text file paths.
func NewPair(vecPath, textPath string) *Pair {
	return &Pair{vecPath: vecPath, textPath: textPath}
}

// Load reads the snapshot. ok is false when either file is missing; the
// matrix is never returned without its text list or vice versa.
func (p *Pair) Load() (matrix [][]float32, texts []string, ok bool, err error) {
	matrix, err = readMatrix(p.vecPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	texts, err = readTexts(p.textPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	if len(matrix) != len(texts) {
		// A torn write from a previous crash; report absent so the caller
		// rebuilds rather than serving mismatched rows.
		return nil, nil, false, nil
	}
	return matrix, texts, true, nil
}

// Save writes the matrix file and then the text file. The pair is not
// crash-atomic; a failed text write leaves the snapshot inconsistent, which
// the staleness check detects and repairs on next load.
func (p *Pair) Save(matrix [][]float32, texts []string) error {
	if len(matrix) != len(texts) {
		return fmt.Errorf("cache save: %d matrix rows for %d texts", len(matrix), len(texts))
	}
	if dir := filepath.Dir(p.vecPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	if dir := filepath.Dir(p.textPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	if err := writeMatrix(p.vecPath, matrix); err != nil {
		return err
	}
	return writeTexts(p.textPath, texts)
}

// Stale reports whether a cached text list no longer matches the current
// one. Comparison is exact and order-sensitive: a reorder, insertion, or
// edit anywhere counts as stale.
func Stale(cached, current []string) bool {
	if len(cached) != len(current) {
		return true
	}
	for i := range cached {
		if cached[i] != CanonicalLine(current[i]) {
			return true
		}
	}
	return false
}

// CanonicalLine is the form a record takes in the text file: embedded
// newlines collapsed to spaces, surrounding whitespace trimmed.
func CanonicalLine(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
}

func writeMatrix(path string, matrix [][]float32) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create matrix file: %w", err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}
	dim := 0
	if len(matrix) > 0 {
		dim = len(matrix[0])
	}
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(matrix)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(dim))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}
	buf := make([]byte, 4)
	for i, row := range matrix {
		if len(row) != dim {
			return fmt.Errorf("matrix row %d has %d columns, want %d", i, len(row), dim)
		}
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("write matrix row: %w", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush matrix file: %w", err)
	}
	return nil
}

func readMatrix(path string) ([][]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	r := bufio.NewReader(file)
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read matrix header: %w", err)
	}
	if string(header[:4]) != string(magic[:]) {
		return nil, fmt.Errorf("matrix file %s: unrecognized format", path)
	}
	rows := binary.LittleEndian.Uint32(header[4:8])
	dim := binary.LittleEndian.Uint32(header[8:12])
	matrix := make([][]float32, rows)
	buf := make([]byte, 4*dim)
	for i := range matrix {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read matrix row %d: %w", i, err)
		}
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		matrix[i] = row
	}
	return matrix, nil
}

func writeTexts(path string, texts []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create text file: %w", err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	for _, text := range texts {
		if _, err := w.WriteString(CanonicalLine(text)); err != nil {
			return fmt.Errorf("write text line: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write text line: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush text file: %w", err)
	}
	return nil
}

func readTexts(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var texts []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		texts = append(texts, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text file: %w", err)
	}
	return texts, nil
}
