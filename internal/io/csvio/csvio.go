// Package csvio turns survey export files into header lists and record
// streams. It handles plain, gzip-compressed and zipped CSV files and
// sniffs the delimiter when none is forced, so the projection engine only
// ever sees headers and cell values.
package csvio

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// sniffLen is the sample size used for delimiter detection.
const sniffLen = 8192

// Source is one open CSV input with its header row already consumed.
type Source struct {
	path    string
	headers []string
	r       *csv.Reader
	closers []io.Closer
}

// Open opens a CSV file, transparently decompressing .gz files and taking
// the first .csv member of .zip archives. A zero delimiter triggers
// detection over the first kilobytes of the stream.
func Open(path string, delimiter rune) (*Source, error) {
	res := &Source{path: path}

	rd, err := res.openStream(path)
	if err != nil {
		return nil, err
	}

	if delimiter == 0 {
		rd, delimiter, err = sniffDelimiter(rd)
		if err != nil {
			res.Close()
			return nil, err
		}
	}

	r := csv.NewReader(rd)
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headers, err := r.Read()
	if err != nil {
		res.Close()
		slog.Error("Cannot read CSV header", "path", path, "error", err)
		return nil, err
	}
	if len(headers) > 0 {
		// exports saved as UTF-8 with BOM
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	res.headers = headers
	res.r = r
	return res, nil
}

// Headers returns the trimmed header row.
func (s *Source) Headers() []string {
	return s.headers
}

// Delimiter returns the delimiter in use.
func (s *Source) Delimiter() rune {
	return s.r.Comma
}

// Read streams records to the channel until end of input. It does not
// close the channel; the caller owns it.
func (s *Source) Read(ctx context.Context, ch chan<- []string) error {
	for {
		rec, err := s.r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			slog.Error("Cannot read CSV record", "path", s.path, "error", err)
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch <- rec:
		}
	}
}

// Close releases the underlying file handles.
func (s *Source) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if e := s.closers[i].Close(); e != nil {
			err = e
		}
	}
	s.closers = nil
	return err
}

func (s *Source) openStream(path string) (io.Reader, error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, f)
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, gz)
		return gz, nil

	case strings.HasSuffix(path, ".zip"):
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, zr)
		for _, zf := range zr.File {
			if strings.HasSuffix(strings.ToLower(zf.Name), ".csv") {
				rc, err := zf.Open()
				if err != nil {
					return nil, err
				}
				s.closers = append(s.closers, rc)
				return rc, nil
			}
		}
		return nil, fmt.Errorf("no CSV member in %s", path)

	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, f)
		return f, nil
	}
}

// sniffDelimiter counts candidate delimiters in a sample of the stream
// and picks the most frequent one, comma winning ties. The sample is
// stitched back in front of the remaining stream.
func sniffDelimiter(rd io.Reader) (io.Reader, rune, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(rd, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, 0, err
	}
	buf = buf[:n]

	best := ','
	bestCount := bytes.Count(buf, []byte{','})
	for _, c := range []byte{';', '\t'} {
		if k := bytes.Count(buf, []byte{c}); k > bestCount {
			best = rune(c)
			bestCount = k
		}
	}
	return io.MultiReader(bytes.NewReader(buf), rd), best, nil
}
