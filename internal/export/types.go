// Package export renders board reports as PDF or CSV downloads.
package export

import (
	"errors"

	"studioflow/api/internal/store"
)

// Format represents the export output format
type Format string

const (
	FormatPDF Format = "pdf"
	FormatCSV Format = "csv"
)

// Request contains parameters for an export operation
type Request struct {
	Title  string
	Format Format
	Filter store.TaskFilter
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
