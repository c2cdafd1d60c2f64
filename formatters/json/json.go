package json

import (
	"context"
	"encoding/json"
	"io"

	"github.com/depsentry/depsentry/results"
)

func NewFormat(out io.Writer) *Format {
	return &Format{out: out}
}

type Format struct {
	out io.Writer
}

func (f *Format) Format(ctx context.Context, report *results.Report) error {
	encoder := json.NewEncoder(f.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
