package hoststore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	objectBodyExt = ".body"
	objectMetaExt = ".meta"
)

// objectMeta is the JSON sidecar written next to each record body.
type objectMeta struct {
	URL      string            `json:"url"`
	Header   map[string]string `json:"header,omitempty"`
	StoredAt int64             `json:"storedAt"` // ns epoch of first write
}

// DiskObject is a directory-backed ObjectStore. Each record is a body
// file plus a JSON metadata sidecar; enumeration order follows first
// write time, so overwrites keep a record's original position.
type DiskObject struct {
	basePath string

	mu sync.RWMutex
}

// NewDiskObject creates an object store rooted at basePath, creating
// the directory if needed.
func NewDiskObject(basePath string) (*DiskObject, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &DiskObject{basePath: basePath}, nil
}

// Put stores rec under url, overwriting any prior record.
func (d *DiskObject) Put(ctx context.Context, url string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Destroy may have removed the directory out from under us.
	if err := os.MkdirAll(d.basePath, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	meta := objectMeta{
		URL:      url,
		Header:   rec.Header,
		StoredAt: time.Now().UnixNano(),
	}

	// Overwrites keep the original enumeration position.
	if prev, err := d.readMeta(d.entryPath(url, objectMetaExt)); err == nil {
		meta.StoredAt = prev.StoredAt
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode record metadata: %w", err)
	}

	if err := writeFileAtomic(d.entryPath(url, objectBodyExt), rec.Body); err != nil {
		return fmt.Errorf("failed to write record body: %w", err)
	}
	if err := writeFileAtomic(d.entryPath(url, objectMetaExt), metaBytes); err != nil {
		return fmt.Errorf("failed to write record metadata: %w", err)
	}
	return nil
}

// Match returns the record stored under url.
func (d *DiskObject) Match(ctx context.Context, url string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	meta, err := d.readMeta(d.entryPath(url, objectMetaExt))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to read record metadata: %w", err)
	}

	body, err := os.ReadFile(d.entryPath(url, objectBodyExt))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to read record body: %w", err)
	}

	return Record{Body: body, Header: meta.Header}, true, nil
}

// Delete removes the record under url.
func (d *DiskObject) Delete(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	metaErr := os.Remove(d.entryPath(url, objectMetaExt))
	bodyErr := os.Remove(d.entryPath(url, objectBodyExt))

	if os.IsNotExist(metaErr) && os.IsNotExist(bodyErr) {
		return false, nil
	}
	if metaErr != nil && !os.IsNotExist(metaErr) {
		return false, fmt.Errorf("failed to remove record metadata: %w", metaErr)
	}
	if bodyErr != nil && !os.IsNotExist(bodyErr) {
		return false, fmt.Errorf("failed to remove record body: %w", bodyErr)
	}
	return true, nil
}

// Keys lists stored urls ordered by first write time.
func (d *DiskObject) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(d.basePath, "*"+objectMetaExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	metas := make([]objectMeta, 0, len(matches))
	for _, path := range matches {
		meta, err := d.readMeta(path)
		if err != nil {
			// Entry removed between glob and read.
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		if metas[i].StoredAt != metas[j].StoredAt {
			return metas[i].StoredAt < metas[j].StoredAt
		}
		return metas[i].URL < metas[j].URL
	})

	keys := make([]string, 0, len(metas))
	for _, meta := range metas {
		keys = append(keys, meta.URL)
	}
	return keys, nil
}

// Destroy deletes the entire store directory.
func (d *DiskObject) Destroy(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.RemoveAll(d.basePath); err != nil {
		return fmt.Errorf("failed to destroy store: %w", err)
	}
	return nil
}

// DiskUsage returns the total size in bytes of stored bodies and
// metadata sidecars.
func (d *DiskObject) DiskUsage() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var total int64
	for _, ext := range []string{objectBodyExt, objectMetaExt} {
		matches, _ := filepath.Glob(filepath.Join(d.basePath, "*"+ext))
		for _, path := range matches {
			if info, err := os.Stat(path); err == nil {
				total += info.Size()
			}
		}
	}
	return total
}

func (d *DiskObject) entryPath(url, ext string) string {
	hash := sha256.Sum256([]byte(url))
	return filepath.Join(d.basePath, hex.EncodeToString(hash[:16])+ext)
}

func (d *DiskObject) readMeta(path string) (objectMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return objectMeta{}, err
	}
	var meta objectMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return objectMeta{}, err
	}
	return meta, nil
}
