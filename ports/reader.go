package ports

import (
	"context"
	"io"

	"modelcheck/domain/dataset"
)

// DatasetReader loads a tabular dataset supplied by an external collaborator
type DatasetReader interface {
	// ReadFile loads the dataset at path, choosing the format from its extension
	ReadFile(ctx context.Context, path string) (*dataset.Dataset, error)
	// Read parses a dataset of the given format ("csv" or "xlsx") from r
	Read(ctx context.Context, r io.Reader, format string) (*dataset.Dataset, error)
}

// DatasetWriter persists a dataset, typically the long-format predictive table
type DatasetWriter interface {
	Write(ctx context.Context, w io.Writer, data *dataset.Dataset) error
}
