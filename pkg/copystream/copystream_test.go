package copystream

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// rawDeflate encodes data the way .NET DeflateStream does, using the
// standard library as an independent producer
func rawDeflate(t *testing.T, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		t.Fatalf("Failed to create deflate writer: %v", err)
	}
	zw.Write(data)
	zw.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func encodeRecord(t *testing.T, name string, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	if err := NewEncoder(&buf).WriteFile(name, bytes.NewReader(data)); err != nil {
		t.Fatalf("Failed to encode %s: %v", name, err)
	}
	return buf.String()
}

func TestRoundTrip(t *testing.T) {
	big := make([]byte, 3<<20)
	rand.New(rand.NewSource(1)).Read(big[:1<<20])
	copy(big[1<<20:], bytes.Repeat([]byte("juju-log line\n"), (2<<20)/14))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"single-byte", []byte{0x7f}},
		{"text", []byte("machine-0.log contents\r\nsecond line")},
		{"multi-megabyte", big},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := encodeRecord(t, tt.name+".bin", tt.data)
			if !strings.HasSuffix(stream, "\n") || strings.Count(stream, "\n") != 1 {
				t.Fatalf("Record should be a single terminated line")
			}

			records, err := Decode(strings.NewReader(stream))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(records) != 1 {
				t.Fatalf("Expected 1 record, got %d", len(records))
			}
			if records[0].Filename != tt.name+".bin" {
				t.Errorf("Unexpected filename %q", records[0].Filename)
			}
			if !bytes.Equal(records[0].Data, tt.data) {
				t.Errorf("Content mismatch: got %d bytes, want %d", len(records[0].Data), len(tt.data))
			}
		})
	}
}

func TestDecodeForeignRawDeflate(t *testing.T) {
	stream := "a.log|" + rawDeflate(t, []byte("from another producer")) + "\r\n"
	records, err := Decode(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(records[0].Data) != "from another producer" {
		t.Errorf("Unexpected content %q", records[0].Data)
	}
}

func TestDecodeToDirTwoRecords(t *testing.T) {
	dest := t.TempDir()
	stream := "a.log|" + rawDeflate(t, []byte("first log")) + "\n" +
		"b.log|" + rawDeflate(t, []byte("second log")) + "\n"

	written, err := DecodeToDir(dest, strings.NewReader(stream))
	if err != nil {
		t.Fatalf("DecodeToDir failed: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("Expected 2 files written, got %v", written)
	}

	entries, _ := os.ReadDir(dest)
	if len(entries) != 2 {
		t.Fatalf("Expected exactly two files in destination, got %d", len(entries))
	}
	for name, want := range map[string]string{"a.log": "first log", "b.log": "second log"} {
		got, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", name, err)
		}
		if string(got) != want {
			t.Errorf("%s: expected %q, got %q", name, want, got)
		}
	}
}

func TestDecodeToDirLongFilename(t *testing.T) {
	dest := t.TempDir()
	name := strings.Repeat("x", 251) + ".log"

	written, err := DecodeToDir(dest, strings.NewReader(encodeRecord(t, name, []byte("long"))))
	if err != nil {
		t.Fatalf("DecodeToDir failed for a %d byte name: %v", len(name), err)
	}
	if len(written) != 1 || written[0] != name {
		t.Errorf("Unexpected names written %v", written)
	}
	got, err := os.ReadFile(filepath.Join(dest, name))
	if err != nil || string(got) != "long" {
		t.Errorf("Expected content %q, got %q (%v)", "long", got, err)
	}
}

func TestRemovePartials(t *testing.T) {
	dest := t.TempDir()
	os.WriteFile(filepath.Join(dest, ".copystream-123.partial"), []byte("half"), 0600)
	os.WriteFile(filepath.Join(dest, "a.log"), []byte("done"), 0644)

	if err := RemovePartials(dest); err != nil {
		t.Fatalf("RemovePartials failed: %v", err)
	}
	entries, _ := os.ReadDir(dest)
	if len(entries) != 1 || entries[0].Name() != "a.log" {
		t.Errorf("Expected only a.log to remain, found %v", entries)
	}
}

func TestDecodeToDirOverwrites(t *testing.T) {
	dest := t.TempDir()
	target := filepath.Join(dest, "a.log")
	os.WriteFile(target, []byte("stale content that is longer"), 0644)

	if _, err := DecodeToDir(dest, strings.NewReader(encodeRecord(t, "a.log", []byte("fresh")))); err != nil {
		t.Fatalf("DecodeToDir failed: %v", err)
	}
	got, _ := os.ReadFile(target)
	if string(got) != "fresh" {
		t.Errorf("Expected file to be replaced, got %q", got)
	}
}

func TestDecodeRejectsPathSeparators(t *testing.T) {
	payload := rawDeflate(t, []byte("x"))
	for _, name := range []string{"../etc/passwd", "sub/a.log", `..\evil`, "/abs"} {
		t.Run(name, func(t *testing.T) {
			dest := t.TempDir()
			_, err := DecodeToDir(dest, strings.NewReader(name+"|"+payload+"\n"))
			if !errors.Is(err, ErrProtocolFormat) {
				t.Fatalf("Expected ErrProtocolFormat, got %v", err)
			}
			if entries, _ := os.ReadDir(dest); len(entries) != 0 {
				t.Errorf("Nothing should be written, found %d entries", len(entries))
			}
		})
	}
}

func TestDecodeBoundaries(t *testing.T) {
	good := "a.log|" + rawDeflate(t, []byte("ok")) + "\n"
	payload := rawDeflate(t, []byte("ok"))

	tests := []struct {
		name    string
		stream  string
		records int
		wantErr bool
	}{
		{"empty stream", "", 0, false},
		{"single record", good, 1, false},
		{"trailing blank line", good + "\n", 1, false},
		{"trailing whitespace line", good + " \r\n", 1, false},
		{"trailing unterminated whitespace", good + "  ", 1, false},
		{"blank line only", "\n", 0, false},
		{"unterminated record", good + "b.log|" + payload, 1, true},
		{"unterminated filename", good + "b.log", 1, true},
		{"missing delimiter", "no-delimiter-here\n", 0, true},
		{"empty filename", "|" + payload + "\n", 0, true},
		{"dot-dot filename", "..|" + payload + "\n", 0, true},
		{"second delimiter in payload", "a.log|" + payload + "|extra\n", 0, true},
		{"non base64 payload", "a.log|not base64!\n", 0, true},
		{"empty payload", "a.log|\n", 0, true},
		{"truncated deflate", "a.log|" + payload[:4] + "\n", 0, true},
		{"data after end marker", good + "\n" + good, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Decode(strings.NewReader(tt.stream))
			if tt.wantErr {
				if !errors.Is(err, ErrProtocolFormat) {
					t.Fatalf("Expected ErrProtocolFormat, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(records) != tt.records {
				t.Errorf("Expected %d records before stopping, got %d", tt.records, len(records))
			}
		})
	}
}

func TestDecoderStopsAfterError(t *testing.T) {
	dec := NewDecoder(strings.NewReader("broken\n" + encodeRecord(t, "a.log", []byte("x"))))
	if _, err := dec.Next(); !errors.Is(err, ErrProtocolFormat) {
		t.Fatalf("Expected ErrProtocolFormat, got %v", err)
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("Decoder should not resynchronise, got %v", err)
	}
}

func TestDecodeToDirKeepsCompletedFiles(t *testing.T) {
	dest := t.TempDir()
	stream := encodeRecord(t, "a.log", []byte("complete")) + "b.log|AAAA\n"

	written, err := DecodeToDir(dest, strings.NewReader(stream))
	if !errors.Is(err, ErrProtocolFormat) {
		t.Fatalf("Expected ErrProtocolFormat, got %v", err)
	}
	if len(written) != 1 || written[0] != "a.log" {
		t.Errorf("Expected only a.log written, got %v", written)
	}

	entries, _ := os.ReadDir(dest)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) != 1 || names[0] != "a.log" {
		t.Errorf("Failed record must not leave partial files, found %v", names)
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func (f *failingReader) Close() error { return nil }

func TestEncodeFilesReportsReadFailures(t *testing.T) {
	files := map[string]io.ReadCloser{
		"/var/log/ok.log":     io.NopCloser(strings.NewReader("all good")),
		"/var/log/broken.log": &failingReader{data: []byte("partial"), err: errors.New("device error")},
	}
	open := func(path string) (io.ReadCloser, error) {
		if rc, ok := files[path]; ok {
			return rc, nil
		}
		return nil, errors.New("access denied")
	}

	var stream bytes.Buffer
	paths := []string{"/var/log/locked.log", "/var/log/broken.log", "/var/log/ok.log"}
	if err := EncodeFiles(&stream, paths, open); err != nil {
		t.Fatalf("EncodeFiles failed: %v", err)
	}

	dest := t.TempDir()
	if _, err := DecodeToDir(dest, &stream); err != nil {
		t.Fatalf("DecodeToDir failed: %v", err)
	}

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("Expected %s in destination: %v", name, err)
		}
		return string(data)
	}

	if got := read("locked.log.copyerror"); got != "access denied" {
		t.Errorf("Unexpected error record content %q", got)
	}
	if got := read("broken.log.copyerror"); got != "device error" {
		t.Errorf("Unexpected error record content %q", got)
	}
	if got := read("broken.log"); got != "partial" {
		t.Errorf("Partial record should hold what was read, got %q", got)
	}
	if got := read("ok.log"); got != "all good" {
		t.Errorf("Sibling file should transfer, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "locked.log")); !os.IsNotExist(err) {
		t.Error("Unopenable file should only produce an error record")
	}
}

func TestGather(t *testing.T) {
	src := t.TempDir()
	os.WriteFile(filepath.Join(src, "one.log"), []byte("1"), 0644)
	os.WriteFile(filepath.Join(src, "two.log"), []byte("22"), 0644)
	os.WriteFile(filepath.Join(src, "skip.txt"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(src, "dir.log"), 0755)
	t.Setenv("GATHER_SRC", src)

	var stream bytes.Buffer
	if err := Gather(&stream, []string{"$GATHER_SRC/*.log"}); err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	records, err := Decode(&stream)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	var names []string
	for _, r := range records {
		names = append(names, r.Filename)
	}
	sort.Strings(names)
	want := []string{"dir.log.copyerror", "one.log", "two.log"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, names)
	}
	for _, r := range records {
		if want := r.Filename == "dir.log.copyerror"; r.IsError() != want {
			t.Errorf("%s: expected IsError %v", r.Filename, want)
		}
	}
}

func TestGatherMissingPaths(t *testing.T) {
	src := t.TempDir()
	os.WriteFile(filepath.Join(src, "one.log"), []byte("1"), 0644)

	var stream bytes.Buffer
	if err := Gather(&stream, []string{filepath.Join(src, "*.missing"), filepath.Join(src, "one.log")}); err != nil {
		t.Fatalf("Wildcard without matches should be skipped: %v", err)
	}
	records, err := Decode(&stream)
	if err != nil || len(records) != 1 || records[0].Filename != "one.log" {
		t.Fatalf("Expected one.log only, got %v (%v)", records, err)
	}

	stream.Reset()
	err = Gather(&stream, []string{filepath.Join(src, "one.log"), filepath.Join(src, "gone.log")})
	if err == nil {
		t.Fatal("Expected error for a literal path that does not exist")
	}
	records, decErr := Decode(&stream)
	if decErr != nil || len(records) != 1 || records[0].Filename != "one.log" {
		t.Errorf("Records before the failure should be kept, got %v (%v)", records, decErr)
	}
}

func TestEncoderRejectsUnsafeNames(t *testing.T) {
	for _, name := range []string{"a/b", "", "a|b", "line\nbreak"} {
		err := NewEncoder(io.Discard).WriteFile(name, strings.NewReader("x"))
		if !errors.Is(err, ErrProtocolFormat) {
			t.Errorf("%q: expected ErrProtocolFormat, got %v", name, err)
		}
	}
}

func TestPowerShellScript(t *testing.T) {
	script := PowerShellScript([]string{`%TEMP%\*.log`, `C:\it's here\*.txt`})

	if !strings.Contains(script, `GatherFiles -patterns @('%TEMP%\*.log','C:\it''s here\*.txt')`) {
		t.Errorf("Patterns not embedded as literals:\n%s", script)
	}
	if !strings.Contains(script, `$filename + "|"`) {
		t.Error("Script should write the record delimiter")
	}
	if !strings.Contains(script, `$file.name + ".copyerror"`) {
		t.Error("Script should name error records with the error suffix")
	}
	if !strings.Contains(script, "[Console]::Out.Write(\"`n\")") {
		t.Error("Script should terminate records with a newline")
	}
	if !strings.Contains(script, "IO.Compression.DeflateStream") {
		t.Error("Script should use raw deflate framing")
	}
	if !strings.Contains(script, "exit 1") {
		t.Error("Script should exit non-zero on uncaught failure")
	}
	if strings.Contains(script, "%!") {
		t.Errorf("Script has a formatting error:\n%s", script)
	}
}
