package stages

import (
	"github.com/adapipe/engine/internal/keymaterial"
	"github.com/adapipe/engine/internal/perr"
	"github.com/adapipe/engine/internal/stage"
)

// KeySource supplies the key material an encryption stage needs for one run.
// Looked up by the stage's configured key id (cfg.Parameters["key_id"]).
type KeySource interface {
	Material(keyID string) (keymaterial.Material, error)
}

// Factory builds a stage.Service from its configuration. Registered per
// algorithm name in a Registry (spec §9's stage registry design note).
type Factory func(cfg stage.Configuration) (stage.Service, error)

// Registry maps lowercase algorithm names to factories, letting the executor
// validate configurations and instantiate services without a compile-time
// exhaustive match (spec §9). Unknown algorithm names yield
// InvalidConfiguration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds the default registry wiring every built-in stage (spec
// §4.3). keys supplies key material for the encryption stage; sink receives
// debug/tee callbacks.
func NewRegistry(keys KeySource, sink DebugSink) *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	for _, algo := range []string{"zstd", "gzip", "snappy", "brotli", "lz4"} {
		r.Register(algo, NewCompression)
	}
	for _, algo := range []string{"aes256gcm", "chacha20poly1305", "xchacha20poly1305"} {
		algo := algo
		r.Register(algo, func(cfg stage.Configuration) (stage.Service, error) {
			keyID, err := cfg.RequireParam("key_id")
			if err != nil {
				return nil, err
			}
			material, err := keys.Material(keyID)
			if err != nil {
				return nil, err
			}
			return NewEncryption(cfg, material)
		})
	}
	r.Register("sha256", func(cfg stage.Configuration) (stage.Service, error) {
		name := cfg.Name
		if name == "" {
			name = "checksum"
		}
		return NewChecksum(name, cfg)
	})
	for _, variant := range []string{"standard", "url_safe"} {
		_ = variant
		r.Register("base64", NewBase64)
	}
	r.Register("debug", func(cfg stage.Configuration) (stage.Service, error) {
		return NewDebug(cfg, sink)
	})

	return r
}

// Register adds or replaces the factory for a lowercase algorithm name.
func (r *Registry) Register(algorithm string, f Factory) {
	r.factories[algorithm] = f
}

// Build instantiates the stage registered for cfg.Algorithm.
func (r *Registry) Build(cfg stage.Configuration) (stage.Service, error) {
	f, ok := r.factories[cfg.Algorithm]
	if !ok {
		return nil, perr.InvalidConfiguration("unknown algorithm %q", cfg.Algorithm)
	}
	return f(cfg)
}

// CanBuild reports whether algorithm is supported without instantiating it.
func (r *Registry) CanBuild(algorithm string) bool {
	_, ok := r.factories[algorithm]
	return ok
}

// SupportedAlgorithms lists every registered algorithm name.
func (r *Registry) SupportedAlgorithms() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	return out
}
