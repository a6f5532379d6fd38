// Package archive reads and writes settlement exports: newline-delimited
// JSON settlement records, usually inside a single LZ4 frame.
package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4"

	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// Extensions of compressed and plain exports.
const (
	Extension      = ".jsonl.lz4"
	PlainExtension = ".jsonl"
)

// frameMagic opens every LZ4 frame.
var frameMagic = []byte{0x04, 0x22, 0x4d, 0x18}

// Writer compresses settlement records onto an underlying stream.
type Writer struct {
	zw    *lz4.Writer
	enc   *json.Encoder
	count int
}

// NewWriter returns a Writer targeting dst. Level 0 selects fast
// compression; higher levels trade speed for size.
func NewWriter(dst io.Writer, level int) *Writer {
	zw := lz4.NewWriter(dst)
	zw.Header.CompressionLevel = level
	return &Writer{zw: zw, enc: json.NewEncoder(zw)}
}

// NewPlainWriter returns a Writer that leaves records uncompressed.
func NewPlainWriter(dst io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(dst)}
}

// Write appends one record.
func (w *Writer) Write(row *relationaldb.SettlementRow) error {
	if row == nil {
		return errors.New("archive: nil settlement")
	}
	if err := w.enc.Encode(row); err != nil {
		return fmt.Errorf("archive: encode settlement %s: %w", row.ID, err)
	}
	w.count++
	return nil
}

// Count reports the number of records written so far.
func (w *Writer) Count() int {
	return w.count
}

// Close flushes the frame. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.zw == nil {
		return nil
	}
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("archive: close frame: %w", err)
	}
	return nil
}

// Reader decodes records written by Writer.
type Reader struct {
	dec *json.Decoder
}

// NewReader returns a Reader over src, which may be compressed or plain.
func NewReader(src io.Reader) *Reader {
	br := bufio.NewReader(src)
	if head, err := br.Peek(len(frameMagic)); err == nil && bytes.Equal(head, frameMagic) {
		return &Reader{dec: json.NewDecoder(lz4.NewReader(br))}
	}
	return &Reader{dec: json.NewDecoder(br)}
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (*relationaldb.SettlementRow, error) {
	var row relationaldb.SettlementRow
	if err := r.dec.Decode(&row); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("archive: decode settlement: %w", err)
	}
	return &row, nil
}

// ReadAll drains r.
func (r *Reader) ReadAll() ([]relationaldb.SettlementRow, error) {
	var rows []relationaldb.SettlementRow
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, *row)
	}
}
