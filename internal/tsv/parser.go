package tsv

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Result is the decoded content of one file.
type Result struct {
	Format   FormatTag
	Channels []ChannelDescriptor
	Samples  []Sample
	Report   *ParseReport
}

// Parser decodes files through a format registry.
// A Parser holds no per-file state and is safe for concurrent use.
type Parser struct {
	registry *Registry
}

// NewParser creates a parser backed by the given registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// ParseFile reads and decodes the file at path.
// When opts.FileName is empty it defaults to the base name of path.
// Fatal errors are returned as *FileError.
func (p *Parser) ParseFile(path string, opts DecodeOptions) (*Result, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from discovery or the operator
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	if opts.FileName == "" {
		opts.FileName = filepath.Base(path)
	}

	res, err := p.Parse(data, opts)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return res, nil
}

// Parse decodes file content held in memory.
func (p *Parser) Parse(data []byte, opts DecodeOptions) (*Result, error) {
	f, h, err := p.header(data)
	if err != nil {
		return nil, err
	}

	channels := f.BuildChannels(h.Devices, h.Labels)
	samples, report := f.DecodeRows(h, channels, opts)

	return &Result{
		Format:   f.Tag(),
		Channels: channels,
		Samples:  samples,
		Report:   report,
	}, nil
}

// ParseHeader resolves the format and derives the channel mapping without
// decoding the body.
func (p *Parser) ParseHeader(data []byte) (FormatTag, []ChannelDescriptor, error) {
	f, h, err := p.header(data)
	if err != nil {
		return "", nil, err
	}
	return f.Tag(), f.BuildChannels(h.Devices, h.Labels), nil
}

func (p *Parser) header(data []byte) (Format, *Header, error) {
	tag, err := DetectTag(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	f, err := p.registry.Resolve(tag)
	if err != nil {
		return nil, nil, err
	}

	h, err := f.ReadHeader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	if len(h.Devices) != len(h.Labels) {
		return nil, nil, fmt.Errorf("%w: device row has %d columns, label row has %d",
			ErrStructuralHeader, len(h.Devices), len(h.Labels))
	}
	if len(h.Devices) < 2 {
		return nil, nil, fmt.Errorf("%w: no data columns", ErrStructuralHeader)
	}
	return f, h, nil
}
