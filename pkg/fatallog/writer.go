// Package fatallog appends diagnostic failure records to a flat text file.
//
// Each record becomes one block:
//
//	date: 20261019153005
//	"title": "User Error"
//	"code": "ERR-001"
//	...
//
// Writers in different processes are serialized with an exclusive advisory
// lock held for the duration of one block. There is no rotation and no size
// cap; the format is for humans, not for re-parsing.
package fatallog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// FileName is the log file created under the configured root
	FileName = "fatal_log.txt"

	// TimestampLayout formats the block header as YYYYMMDDHHMMSS
	TimestampLayout = "20060102150405"

	fileMode = 0644
	dirMode  = 0750
)

// Field is one named value of a record
type Field struct {
	Name  string
	Value any
}

// Record is anything that can be persisted as an ordered list of fields
type Record interface {
	Fields() []Field
}

// Writer appends records to <Root>/fatal_log.txt
type Writer struct {
	Root string

	// Now returns the block timestamp (default time.Now)
	Now func() time.Time
}

// New creates a writer rooted at root
func New(root string) *Writer {
	return &Writer{Root: root}
}

// Path returns the log file path
func (w *Writer) Path() string {
	return filepath.Join(w.Root, FileName)
}

// Write appends rec as one block. A nil record, or one without fields, is
// ignored. The call blocks until the file lock is available.
func (w *Writer) Write(rec Record) error {
	if rec == nil {
		return nil
	}
	fields := rec.Fields()
	if len(fields) == 0 {
		return nil
	}

	block := w.format(fields)

	if err := os.MkdirAll(w.Root, dirMode); err != nil {
		return fmt.Errorf("failed to create log root: %w", err)
	}

	f, err := os.OpenFile(w.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("failed to lock log file: %w", err)
	}
	_, werr := f.Write(block)
	uerr := unlockFile(f)

	if werr != nil {
		return fmt.Errorf("failed to write log record: %w", werr)
	}
	if uerr != nil {
		return fmt.Errorf("failed to unlock log file: %w", uerr)
	}
	return nil
}

func (w *Writer) format(fields []Field) []byte {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "date: %s\n", now().Format(TimestampLayout))
	for _, f := range fields {
		// Go-literal formatting keeps multi-line values on one line
		fmt.Fprintf(&buf, "%#v: %#v\n", f.Name, f.Value)
	}
	return buf.Bytes()
}
