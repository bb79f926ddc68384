package copystream

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
)

type decodeState int

const (
	expectFilename decodeState = iota
	expectPayload
	streamEnd
)

// Decoder reads records from a stream. There is no resynchronisation: the
// first malformed record ends decoding with ErrProtocolFormat.
type Decoder struct {
	r     *bufio.Reader
	state decodeState
	line  int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next decodes the next record. It returns io.EOF at the end of the stream.
func (d *Decoder) Next() (*Record, error) {
	name, payload, err := d.nextRaw()
	if err != nil {
		return nil, err
	}
	zr := inflate(payload)
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, d.errorf("undecodable payload for %q: %v", name, err)
	}
	return &Record{Filename: name, Data: data}, nil
}

func inflate(payload string) io.ReadCloser {
	return flate.NewReader(base64.NewDecoder(base64.StdEncoding, strings.NewReader(payload)))
}

func (d *Decoder) errorf(format string, args ...any) error {
	d.state = streamEnd
	return fmt.Errorf("%w: line %d: %s", ErrProtocolFormat, d.line, fmt.Sprintf(format, args...))
}

// nextRaw returns the filename and still encoded payload of the next record
func (d *Decoder) nextRaw() (string, string, error) {
	if d.state == streamEnd {
		return "", "", io.EOF
	}

	line, err := d.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", "", err
	}
	if err == io.EOF {
		d.state = streamEnd
		if strings.TrimSpace(line) == "" {
			return "", "", io.EOF
		}
		d.line++
		return "", "", d.errorf("unterminated record %q", abbreviate(line))
	}

	d.line++
	body := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
	if strings.TrimSpace(body) == "" {
		return "", "", d.finish()
	}
	return d.parseRecord(body)
}

// finish consumes what follows the end-of-stream line, which may only be
// whitespace
func (d *Decoder) finish() error {
	d.state = streamEnd
	rest, err := io.ReadAll(d.r)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(rest)) != "" {
		d.line++
		return d.errorf("data after end of stream %q", abbreviate(string(rest)))
	}
	return io.EOF
}

func (d *Decoder) parseRecord(body string) (string, string, error) {
	d.state = expectFilename
	mid := -1
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch d.state {
		case expectFilename:
			switch c {
			case Delimiter:
				mid = i
				d.state = expectPayload
			case '/', '\\':
				return "", "", d.errorf("path not filename %q", abbreviate(body))
			}
		case expectPayload:
			if !isBase64Byte(c) {
				return "", "", d.errorf("unexpected %q in payload of %q", c, body[:mid])
			}
		}
	}
	if d.state != expectPayload {
		return "", "", d.errorf("missing filename in encoded copy data %q", abbreviate(body))
	}
	d.state = expectFilename

	name := body[:mid]
	if err := ValidateFilename(name); err != nil {
		d.state = streamEnd
		return "", "", fmt.Errorf("line %d: %w", d.line, err)
	}
	return name, body[mid+1:], nil
}

func abbreviate(s string) string {
	const max = 64
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// Decode reads a whole stream into memory
func Decode(r io.Reader) ([]*Record, error) {
	dec := NewDecoder(r)
	var records []*Record
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// DecodeToDir writes every record of the stream to destDir, replacing
// existing files, and returns the names written. Each file is written to a
// temporary name first, so a record that fails to decode leaves nothing
// behind; records completed before the failure are kept.
func DecodeToDir(destDir string, r io.Reader) ([]string, error) {
	dec := NewDecoder(r)
	var written []string
	for {
		name, payload, err := dec.nextRaw()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		if err := writeRecord(dec, destDir, name, payload); err != nil {
			return written, err
		}
		written = append(written, name)
	}
}

// partialPattern names in-progress files. It does not embed the record name
// so any name the destination accepts can be written.
const partialPattern = ".copystream-*.partial"

// RemovePartials deletes in-progress files DecodeToDir left in destDir when
// the process was stopped mid-record
func RemovePartials(destDir string) error {
	matches, err := filepath.Glob(filepath.Join(destDir, partialPattern))
	if err != nil {
		return err
	}
	var errs []error
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeRecord(dec *Decoder, destDir, name, payload string) error {
	tmp, err := os.CreateTemp(destDir, partialPattern)
	if err != nil {
		return fmt.Errorf("failed to create file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	zr := inflate(payload)
	defer zr.Close()
	src := &trackingReader{r: zr}
	if _, err := io.Copy(tmp, src); err != nil {
		if src.err != nil {
			return dec.errorf("undecodable payload for %q: %v", name, src.err)
		}
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fmt.Errorf("failed to set mode of %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(destDir, name)); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	committed = true
	return nil
}
