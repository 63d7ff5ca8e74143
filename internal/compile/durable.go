package compile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"pipegen/internal/cachekey"
	"pipegen/internal/diag"
	"pipegen/internal/trace"
)

// Current schema version - increment when Record format changes
const recordSchema uint16 = 1

// Record is the persisted outcome of compiling one unit.
type Record struct {
	Schema       uint16
	Key          string
	Unit         string
	App          string
	Backend      string
	Optimization string
	// Path is the persisted artifact, empty for backends without one.
	Path        string
	Broken      bool
	Diagnostics []diag.Diagnostic
	Created     time.Time
}

// Durable caches compile outcomes under a content key derived from the
// application name, unit name, optimisation level and source. A hit reopens
// the persisted artifact or replays the recorded failure without compiling.
// Records are written atomically and guarded by a cross-process lock.
type Durable struct {
	Dir     string
	App     string
	Backend Strategy

	// mu is held shared by Compile and Records and exclusively by Clean.
	mu   sync.RWMutex
	keys sync.Map // key string -> *sync.Mutex
}

// NewDurable returns a durable cache in dir wrapping backend.
func NewDurable(dir, app string, backend Strategy) *Durable {
	return &Durable{Dir: dir, App: app, Backend: backend}
}

func (d *Durable) Name() string { return "durable+" + d.Backend.Name() }

func (d *Durable) Package(unit string) string { return d.Backend.Package(unit) }

// Key returns the content key of u.
func (d *Durable) Key(u Unit) cachekey.Digest {
	return cachekey.Unit(d.App, u.Name, u.Optimization.String(), u.Source)
}

func (d *Durable) Compile(ctx context.Context, u Unit) (*Artifact, error) {
	if d.Backend == nil {
		return nil, errors.New("compile: durable cache without backend")
	}
	key := d.Key(u)
	for _, sub := range []string{"records", "artifacts", "locks"} {
		if err := os.MkdirAll(filepath.Join(d.Dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("compile: %w", err)
		}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	kmu := d.keyLock(key)
	kmu.Lock()
	defer kmu.Unlock()
	unlock, err := lockFile(filepath.Join(d.Dir, "locks", key.String()+".lock"))
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	defer unlock()

	if art, ok, err := d.replay(ctx, u, key); ok {
		return art, err
	}

	art, err := d.Backend.Compile(ctx, u)
	var failure *Failure
	switch {
	case errors.As(err, &failure):
		rec := d.record(u, key)
		rec.Broken = true
		rec.Diagnostics = failure.Diagnostics
		if werr := d.put(key, rec); werr != nil {
			trace.Mark(ctx, trace.ScopeStage, "cache", "write failed: "+werr.Error())
		}
		return nil, err
	case err != nil:
		return nil, err
	}

	rec := d.record(u, key)
	if art.Path != "" {
		dst := filepath.Join(d.Dir, "artifacts", key.String()+filepath.Ext(art.Path))
		if err := copyFile(art.Path, dst); err != nil {
			return nil, fmt.Errorf("compile: persist artifact: %w", err)
		}
		rec.Path = dst
	}
	if err := d.put(key, rec); err != nil {
		return nil, fmt.Errorf("compile: write cache record: %w", err)
	}
	art.Key = key
	return art, nil
}

// keyLock serialises compilations of one key inside the process; the file
// lock does the same across processes.
func (d *Durable) keyLock(key cachekey.Digest) *sync.Mutex {
	v, _ := d.keys.LoadOrStore(key.String(), new(sync.Mutex))
	return v.(*sync.Mutex)
}

// replay serves u from its record. ok is false when the unit must be compiled.
func (d *Durable) replay(ctx context.Context, u Unit, key cachekey.Digest) (*Artifact, bool, error) {
	var rec Record
	found, err := d.get(key, &rec)
	if err != nil {
		trace.Mark(ctx, trace.ScopeStage, "cache", "corrupt record "+key.Short()+": "+err.Error())
		return nil, false, nil
	}
	if !found || rec.Schema != recordSchema || rec.Backend != d.Backend.Name() {
		return nil, false, nil
	}
	if rec.Broken {
		trace.Mark(ctx, trace.ScopeStage, "cache", "broken "+u.Name)
		return nil, true, &Failure{
			Unit:        u.Name,
			Backend:     d.Backend.Name(),
			Source:      u.Source,
			Diagnostics: rec.Diagnostics,
			Cached:      true,
		}
	}
	r, ok := d.Backend.(Reopener)
	if !ok || rec.Path == "" {
		return nil, false, nil
	}
	art, err := r.Reopen(ctx, u, rec.Path)
	if err != nil {
		trace.Mark(ctx, trace.ScopeStage, "cache", "reopen failed: "+err.Error())
		return nil, false, nil
	}
	trace.Mark(ctx, trace.ScopeStage, "cache", "hit "+u.Name)
	art.Key = key
	art.Cached = true
	return art, true, nil
}

func (d *Durable) record(u Unit, key cachekey.Digest) *Record {
	return &Record{
		Schema:       recordSchema,
		Key:          key.String(),
		Unit:         u.Name,
		App:          d.App,
		Backend:      d.Backend.Name(),
		Optimization: u.Optimization.String(),
		Created:      time.Now().UTC(),
	}
}

func (d *Durable) pathFor(key cachekey.Digest) string {
	return filepath.Join(d.Dir, "records", key.String()+".mp")
}

// put serializes and writes a record atomically.
func (d *Durable) put(key cachekey.Digest, rec *Record) error {
	p := d.pathFor(key)
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		// gone after a successful rename
		_ = os.Remove(f.Name())
	}()
	if err := msgpack.NewEncoder(f).Encode(rec); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// get reads and deserializes a record.
func (d *Durable) get(key cachekey.Digest, out *Record) (bool, error) {
	f, err := os.Open(d.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	return true, nil
}

// Records lists every readable record, newest first.
func (d *Durable) Records() ([]Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entries, err := os.ReadDir(filepath.Join(d.Dir, "records"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".mp") {
			continue
		}
		key, err := cachekey.Parse(strings.TrimSuffix(name, ".mp"))
		if err != nil {
			continue
		}
		var rec Record
		if ok, err := d.get(key, &rec); err != nil || !ok {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

// Clean drops the whole cache directory.
func (d *Durable) Clean() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := os.Stat(d.Dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	// rename first so concurrent readers never see a half-deleted tree
	old := d.Dir + ".old-" + time.Now().Format("20060102150405.000000000")
	if err := os.Rename(d.Dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp, err := os.CreateTemp(filepath.Dir(dst), "tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
