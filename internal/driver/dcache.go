package driver

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"latch/internal/ast"
	"latch/internal/elab"
)

// Current schema version - increment when EnvTablePayload format changes
const envCacheSchemaVersion uint16 = 1

// DiskCache персистит таблицы окружений по дайджесту реестра.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// BindingPayload is one serialized (parameter, binding) pair.
type BindingPayload struct {
	Param      uint32
	Indirect   bool
	Direct     uint32
	TargetNode uint32
	TargetEnv  uint32
}

// IntfPayload is one serialized interface-port association.
type IntfPayload struct {
	Port     uint32
	InstNode uint32
	InstEnv  uint32
}

// EnvPayload is one serialized environment in handle order.
type EnvPayload struct {
	Module uint32
	Values []BindingPayload
	Types  []BindingPayload
	Intfs  []IntfPayload
}

// EnvTablePayload stores every interned environment of one session, keyed by
// the registry digest so any AST change invalidates the entry.
type EnvTablePayload struct {
	Schema   uint16
	Registry [32]byte
	Envs     []EnvPayload // handle order, default env (0) excluded
}

// OpenDiskCache initializes and returns a disk cache at the standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key [32]byte) string {
	hexKey := hex.EncodeToString(key[:])
	// Подкаталог "envs" — для удобства очистки.
	return filepath.Join(c.dir, "envs", hexKey+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key [32]byte, payload *EnvTablePayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads and deserializes a payload from the disk cache.
func (c *DiskCache) Get(key [32]byte, out *EnvTablePayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	// #nosec G304 -- path derives from a hex digest under the cache dir
	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(out); err != nil {
		return false, fmt.Errorf("decode env cache: %w", err)
	}
	if out.Schema != envCacheSchemaVersion {
		return false, nil
	}
	return true, nil
}

// SnapshotEnvs serializes the session's interned environments.
func SnapshotEnvs(sess *elab.Session) *EnvTablePayload {
	in := sess.Envs()
	payload := &EnvTablePayload{
		Schema:   envCacheSchemaVersion,
		Registry: sess.Registry().Digest(),
	}
	for env := elab.ParamEnv(1); int(env) < in.Len(); env++ {
		data, ok := in.Lookup(env)
		if !ok {
			break
		}
		payload.Envs = append(payload.Envs, encodeEnv(data))
	}
	return payload
}

// RestoreEnvs re-interns a cached table into the session, in handle order so
// the restored handles match the cached ones. Returns false when the payload
// belongs to a different registry.
func RestoreEnvs(sess *elab.Session, payload *EnvTablePayload) bool {
	if payload == nil || payload.Registry != sess.Registry().Digest() {
		return false
	}
	for _, env := range payload.Envs {
		data := decodeEnv(env)
		handle := sess.InternParamEnv(data)
		if data.Module() != ast.NoNodeID {
			sess.AddParamEnvContext(handle, data.Module())
		}
	}
	return true
}

func encodeEnv(data *elab.ParamEnvData) EnvPayload {
	out := EnvPayload{Module: uint32(data.Module())}
	for _, e := range data.Values() {
		out.Values = append(out.Values, encodeBinding(uint32(e.Param), e.Binding.Kind, uint32(e.Binding.Direct), e.Binding.Target))
	}
	for _, e := range data.Types() {
		out.Types = append(out.Types, encodeBinding(uint32(e.Param), e.Binding.Kind, uint32(e.Binding.Direct), e.Binding.Target))
	}
	for _, e := range data.Interfaces() {
		out.Intfs = append(out.Intfs, IntfPayload{
			Port:     uint32(e.Port),
			InstNode: uint32(e.Inst.Node),
			InstEnv:  uint32(e.Inst.Env),
		})
	}
	return out
}

func encodeBinding(param uint32, kind elab.BindingKind, direct uint32, target elab.NodeEnvID) BindingPayload {
	return BindingPayload{
		Param:      param,
		Indirect:   kind == elab.BindIndirect,
		Direct:     direct,
		TargetNode: uint32(target.Node),
		TargetEnv:  uint32(target.Env),
	}
}

func decodeEnv(p EnvPayload) elab.ParamEnvData {
	var values []elab.ValueEntry
	for _, b := range p.Values {
		values = append(values, elab.ValueEntry{
			Param:   ast.NodeID(b.Param),
			Binding: decodeBinding[elab.ValueRef](b),
		})
	}
	var types []elab.TypeEntry
	for _, b := range p.Types {
		types = append(types, elab.TypeEntry{
			Param:   ast.NodeID(b.Param),
			Binding: decodeBinding[elab.TypeRef](b),
		})
	}
	var intfs []elab.IntfEntry
	for _, i := range p.Intfs {
		intfs = append(intfs, elab.IntfEntry{
			Port: ast.NodeID(i.Port),
			Inst: elab.InEnv(ast.NodeID(i.InstNode), elab.ParamEnv(i.InstEnv)),
		})
	}
	return elab.NewParamEnvData(ast.NodeID(p.Module), values, types, intfs)
}

func decodeBinding[T interface{ ~uint32 }](b BindingPayload) elab.Binding[T] {
	if b.Indirect {
		return elab.IndirectBinding[T](elab.InEnv(ast.NodeID(b.TargetNode), elab.ParamEnv(b.TargetEnv)))
	}
	return elab.DirectBinding(T(b.Direct))
}
