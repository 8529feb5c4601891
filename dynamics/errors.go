package dynamics

import "errors"

// Desync errors. The worker reports them through Options.OnFatal; they mean
// the client and worker disagree about which entities exist.
var (
	ErrUnknownTerrain     = errors.New("dynamics: unknown terrain")
	ErrUnknownShadow      = errors.New("dynamics: unknown shadow")
	ErrUnknownFuse        = errors.New("dynamics: unknown fuse")
	ErrUnknownVolumeLight = errors.New("dynamics: unknown volume light")
	ErrDuplicate          = errors.New("dynamics: duplicate registration")
)

// ErrServerStopped is returned by commands posted after Stop.
var ErrServerStopped = errors.New("dynamics: server stopped")
