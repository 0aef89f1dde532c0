package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// SnapshotHeader is the first line of a snapshot file, readable without
// decoding the body.
type SnapshotHeader struct {
	Version int       `json:"version"`
	ID      uuid.UUID `json:"id"`
	Tick    uint64    `json:"tick"`
	SavedAt time.Time `json:"saved_at"`
}

// SnapshotFile is a Sink writing zstd-compressed JSON: one header line, then
// the SaveGame document.
type SnapshotFile struct {
	Path string
}

var _ Sink = (*SnapshotFile)(nil)

// Save writes g atomically (temp file, then rename).
func (s *SnapshotFile) Save(ctx context.Context, g *SaveGame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeSnapshot(tmp, g); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

func writeSnapshot(f *os.File, g *SaveGame) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, err := json.Marshal(SnapshotHeader{Version: g.Version, ID: g.ID, Tick: g.Tick, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(g); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

// Load reads the snapshot. A missing file is ErrNoSave.
func (s *SnapshotFile) Load(ctx context.Context) (*SaveGame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSave
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	var hdr SnapshotHeader
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if hdr.Version > SaveVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported %d", hdr.Version, SaveVersion)
	}

	var g SaveGame
	if err := json.NewDecoder(br).Decode(&g); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	return &g, nil
}
