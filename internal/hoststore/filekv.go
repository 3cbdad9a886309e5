package hoststore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const (
	kvFileExt = ".kv"

	// One-byte value prefix marking how the rest of the file is encoded.
	kvEncodingPlain = 0x00
	kvEncodingZstd  = 0x01

	// Values below this size are stored uncompressed.
	kvCompressThreshold = 1024
)

// FileKV is a directory-backed KV that persists across processes. Each
// key maps to one file named by the SHA-256 of the key; values larger
// than 1KiB are zstd-compressed.
type FileKV struct {
	basePath string

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu sync.RWMutex
}

// NewFileKV creates a file-backed store rooted at basePath, creating
// the directory if needed.
func NewFileKV(basePath string, compressionLevel int) (*FileKV, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	if compressionLevel <= 0 {
		compressionLevel = 3
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &FileKV{
		basePath: basePath,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// Get returns the value stored under key.
func (f *FileKV) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.filePath(key))
	if err != nil || len(data) == 0 {
		return "", false
	}

	switch data[0] {
	case kvEncodingZstd:
		decompressed, err := f.decoder.DecodeAll(data[1:], nil)
		if err != nil {
			return "", false
		}
		return string(decompressed), true
	default:
		return string(data[1:]), true
	}
}

// Set stores value under key, overwriting any prior value.
func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	payload := []byte(value)
	encoded := make([]byte, 1, len(payload)+1)
	encoded[0] = kvEncodingPlain

	if len(payload) > kvCompressThreshold {
		compressed := f.encoder.EncodeAll(payload, nil)
		// Only keep the compressed form when it actually shrinks.
		if len(compressed) < len(payload) {
			encoded[0] = kvEncodingZstd
			payload = compressed
		}
	}
	encoded = append(encoded, payload...)

	return writeFileAtomic(f.filePath(key), encoded)
}

// Remove deletes key from the store.
func (f *FileKV) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.filePath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove entry: %w", err)
	}
	return nil
}

// Clear removes every entry file in the store directory.
func (f *FileKV) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(f.basePath, "*"+kvFileExt))
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove entry: %w", err)
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (f *FileKV) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(f.basePath, "*"+kvFileExt))
	if err != nil {
		return 0
	}
	return len(matches)
}

// DiskUsage returns the total size in bytes of the stored entry files.
func (f *FileKV) DiskUsage() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var total int64
	matches, _ := filepath.Glob(filepath.Join(f.basePath, "*"+kvFileExt))
	for _, path := range matches {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return total
}

func (f *FileKV) filePath(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(f.basePath, hex.EncodeToString(hash[:16])+kvFileExt)
}

// writeFileAtomic writes to a temp file first, then renames into place.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, path)
}
