package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// WriteSnapshot stores a summary as zstd-compressed JSON, writing to a
// temp file first so a crash never leaves a torn snapshot behind.
func WriteSnapshot(path string, s Summary) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snap-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = tmp.Close()
		return err
	}
	w := bufio.NewWriterSize(enc, 128*1024)
	if err := json.NewEncoder(w).Encode(s); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadSnapshot loads a summary written by WriteSnapshot.
func ReadSnapshot(path string) (Summary, error) {
	var s Summary
	f, err := os.Open(path)
	if err != nil {
		return s, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return s, err
	}
	defer dec.Close()

	if err := json.NewDecoder(dec).Decode(&s); err != nil {
		return s, fmt.Errorf("snapshot %s: %w", filepath.Base(path), err)
	}
	return s, nil
}
