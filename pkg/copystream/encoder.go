package copystream

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
)

// ReadError is returned by Encoder.WriteFile when the source reader failed.
// The record written so far is still well formed.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// Encoder writes records to a stream
type Encoder struct {
	w     io.Writer
	level int
}

// NewEncoder returns an encoder using the default deflate level
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, level: flate.DefaultCompression}
}

// SetLevel changes the deflate compression level
func (e *Encoder) SetLevel(level int) {
	e.level = level
}

// WriteFile streams r as one record. The record is always terminated, even
// when reading r fails part way, so the stream stays decodable.
func (e *Encoder) WriteFile(name string, r io.Reader) error {
	if err := ValidateFilename(name); err != nil {
		return err
	}
	if _, err := io.WriteString(e.w, name+string(Delimiter)); err != nil {
		return err
	}

	b64 := base64.NewEncoder(base64.StdEncoding, e.w)
	zw, err := flate.NewWriter(b64, e.level)
	if err != nil {
		return fmt.Errorf("failed to create deflate writer: %w", err)
	}
	src := &trackingReader{r: r}
	_, copyErr := io.Copy(zw, src)

	closeErr := errors.Join(zw.Close(), b64.Close())
	if _, err := io.WriteString(e.w, "\n"); err != nil {
		closeErr = errors.Join(closeErr, err)
	}

	switch {
	case src.err != nil:
		return &ReadError{Name: name, Err: src.err}
	case copyErr != nil:
		return copyErr
	}
	return closeErr
}

// WriteError writes an error record for name
func (e *Encoder) WriteError(name string, cause error) error {
	return e.WriteFile(name+ErrorSuffix, strings.NewReader(cause.Error()))
}

// OpenFunc opens a file for EncodeFiles
type OpenFunc func(path string) (io.ReadCloser, error)

func openRegular(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return f, nil
}

// EncodeFiles writes one record per path. A path that cannot be opened or
// read produces an error record and encoding continues with the next path.
// Only failures writing to the stream are returned. A nil open uses the
// local filesystem.
func EncodeFiles(w io.Writer, paths []string, open OpenFunc) error {
	if open == nil {
		open = openRegular
	}
	enc := NewEncoder(w)
	for _, path := range paths {
		name := filepath.Base(path)
		if err := encodeOne(enc, name, path, open); err != nil {
			return err
		}
	}
	return nil
}

func encodeOne(enc *Encoder, name, path string, open OpenFunc) error {
	rc, err := open(path)
	if err != nil {
		return enc.WriteError(name, err)
	}
	defer rc.Close()

	err = enc.WriteFile(name, rc)
	var readErr *ReadError
	if errors.As(err, &readErr) {
		return enc.WriteError(name, readErr.Err)
	}
	return err
}

// Gather expands environment variables in each pattern, globs it on the
// local filesystem and encodes every match, in pattern order. As with
// Get-Item on the Windows side, a wildcard pattern matching nothing is
// skipped while a literal path that does not exist aborts the batch;
// records for earlier patterns have already been written by then.
func Gather(w io.Writer, patterns []string) error {
	for _, pattern := range patterns {
		expanded := os.ExpandEnv(pattern)
		matches, err := filepath.Glob(expanded)
		if err != nil {
			return fmt.Errorf("failed to expand pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 && !hasMeta(expanded) {
			return fmt.Errorf("cannot find path %q because it does not exist", expanded)
		}
		if err := EncodeFiles(w, matches, nil); err != nil {
			return err
		}
	}
	return nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[`)
}
