package lg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// ParseByteSize parses sizes written with the b/kb/mb/gb/tb (x1024) unit
// grammar used by the node's logger.rolling_file_size config field, e.g.
// "10mb" or a bare integer for bytes. It is a straight port of the original
// node's deserialize_limit visitor.
func ParseByteSize(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty size")
	}
	cut := len(raw)
	for i, r := range raw {
		if r < '0' || r > '9' {
			cut = i
			break
		}
	}
	number := strings.TrimSpace(raw[:cut])
	unit := strings.TrimSpace(raw[cut:])

	n, err := strconv.ParseUint(number, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", raw, err)
	}
	if unit == "" {
		return n, nil
	}
	var mult uint64
	switch strings.ToLower(unit) {
	case "b":
		mult = 1
	case "kb", "kib":
		mult = 1024
	case "mb", "mib":
		mult = 1024 * 1024
	case "gb", "gib":
		mult = 1024 * 1024 * 1024
	case "tb", "tib":
		mult = 1024 * 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("invalid size unit %q", unit)
	}
	return n * mult, nil
}

// rollingFile is a zapcore.WriteSyncer that rotates its underlying file once
// it has grown past maxBytes, keeping a single ".1" backup. The node's
// ecosystem dependencies carry no dedicated log-rotation library, so this is
// a minimal stdlib implementation guarded by its own mutex.
type rollingFile struct {
	mu       sync.Mutex
	path     string
	maxBytes uint64
	size     uint64
	f        *os.File
}

// NewRollingFile opens (creating if needed) a size-rotated log file at path,
// rotating to path+".1" once it exceeds maxBytes.
func NewRollingFile(path string, maxBytes uint64) (zapcore.WriteSyncer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &rollingFile{path: path, maxBytes: maxBytes, size: uint64(info.Size()), f: f}, nil
}

func (r *rollingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxBytes > 0 && r.size+uint64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.f.Write(p)
	r.size += uint64(n)
	return n, err
}

func (r *rollingFile) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Sync()
}

func (r *rollingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(r.path, r.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	r.f = f
	r.size = 0
	return nil
}
