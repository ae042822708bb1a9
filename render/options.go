package render

// Option configures a backend during creation.
//
// Example:
//
//	// Default cache size and worker count
//	vb, err := render.NewVideoBackend(g, adapter, params)
//
//	// Small cache for memory-constrained preview
//	vb, err := render.NewVideoBackend(g, adapter, params,
//		render.WithCacheCapacity(4))
type Option func(*backendOptions)

// backendOptions holds optional configuration shared by both backends.
type backendOptions struct {
	cacheCapacity int
	workers       int
}

func defaultOptions() backendOptions {
	return backendOptions{
		cacheCapacity: defaultCacheCapacity,
		workers:       defaultWorkers,
	}
}

const (
	// defaultCacheCapacity is the per-shard output cache capacity. Rendered
	// frames are large, so the default stays small; total capacity is this
	// times the shard count.
	defaultCacheCapacity = 8

	// defaultWorkers is the audio chunk worker count. Video renders are
	// serialized on the GPU context regardless of this setting.
	defaultWorkers = 4
)

// WithCacheCapacity sets the per-shard capacity of the output cache.
func WithCacheCapacity(n int) Option {
	return func(o *backendOptions) {
		if n > 0 {
			o.cacheCapacity = n
		}
	}
}

// WithWorkers sets the number of parallel audio render workers. Ignored by
// the video backend, which pins GPU work to a single context.
func WithWorkers(n int) Option {
	return func(o *backendOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}
