package fits

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// HDU is one header and data unit. Data holds the unpadded data bytes.
type HDU struct {
	Header *Header
	Data   []byte
}

// File is a fully read FITS file.
type File struct {
	Path string
	HDUs []HDU
}

// ReadOptions controls how tolerant the reader is of damaged files.
type ReadOptions struct {
	// IgnoreMissingEnd accepts a final header that reaches end of file
	// without an END card.
	IgnoreMissingEnd bool
}

// Open reads every HDU of the file at path. Trailing bytes that do not start
// a new extension are ignored.
func Open(path string, opts ReadOptions) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := decode(bufio.NewReader(f), opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	file.Path = path
	return file, nil
}

func decode(r io.Reader, opts ReadOptions) (*File, error) {
	file := &File{}
	for {
		h, err := readHeader(r)
		switch {
		case errors.Is(err, io.EOF):
			if len(file.HDUs) == 0 {
				return nil, fmt.Errorf("empty file: %w", ErrNotFITS)
			}
			return file, nil
		case errors.Is(err, ErrNotFITS) && len(file.HDUs) > 0:
			return file, nil
		case errors.Is(err, ErrMissingEnd):
			if !opts.IgnoreMissingEnd {
				return nil, fmt.Errorf("HDU %d: %w", len(file.HDUs), err)
			}
			file.HDUs = append(file.HDUs, HDU{Header: h})
			return file, nil
		case err != nil:
			return nil, fmt.Errorf("HDU %d: %w", len(file.HDUs), err)
		}

		size, err := h.dataSize()
		if err != nil {
			return nil, fmt.Errorf("HDU %d: %w", len(file.HDUs), err)
		}

		// The buffer grows with what is actually read, so a size larger than
		// the file fails as truncated instead of allocating it up front.
		var buf bytes.Buffer
		if _, err := io.CopyN(&buf, r, size); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("HDU %d: truncated data unit: %w", len(file.HDUs), err)
		}
		data := buf.Bytes()
		if pad := padded(size) - size; pad > 0 {
			// Missing padding after the last data unit is common enough to accept.
			if _, err := io.CopyN(io.Discard, r, pad); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("HDU %d: %w", len(file.HDUs), err)
			}
		}

		file.HDUs = append(file.HDUs, HDU{Header: h, Data: data})
	}
}

// ReadPrimaryHeader reads only the primary header of the file at path. A
// header without an END card is accepted.
func ReadPrimaryHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := readHeader(bufio.NewReader(f))
	switch {
	case errors.Is(err, io.EOF):
		return nil, fmt.Errorf("read %s: empty file: %w", path, ErrNotFITS)
	case errors.Is(err, ErrMissingEnd):
		return h, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return h, nil
}

// KeywordReader looks up primary header keywords on disk.
type KeywordReader struct{}

// ReadKeyword opens path, reads the named primary header keyword and closes
// the file. A missing keyword is Absent, not an error.
func (KeywordReader) ReadKeyword(path, keyword string) (Value, error) {
	h, err := ReadPrimaryHeader(path)
	if err != nil {
		return Absent(), err
	}
	return h.Get(keyword), nil
}
