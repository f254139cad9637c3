package store

import (
	"go.uber.org/zap"

	"github.com/atlasgym/gym-engine/store/memory"
	"github.com/atlasgym/gym-engine/store/sqlite"
)

// Open selects the most capable available engine: SQLite first, falling
// back to the in-memory engine when the database cannot be opened. The
// fallback keeps the application usable (reads and writes work for the
// session) at the cost of durability, so it is logged loudly.
//
// driver may force a specific engine: "sqlite" or "memory". Empty means
// sqlite-with-fallback.
func Open(driver, path string, log *zap.Logger) (Engine, error) {
	switch driver {
	case "memory":
		return memory.New(), nil
	case "sqlite", "":
		engine, err := sqlite.Open(path)
		if err == nil {
			return engine, nil
		}
		if driver == "sqlite" {
			return nil, err
		}
		log.Warn("sqlite engine unavailable, falling back to memory store",
			zap.String("path", path),
			zap.Error(err))
		return memory.New(), nil
	default:
		return nil, &UnknownDriverError{Driver: driver}
	}
}

// UnknownDriverError reports a driver name Open does not recognize.
type UnknownDriverError struct {
	Driver string
}

func (e *UnknownDriverError) Error() string {
	return "unknown storage driver: " + e.Driver
}
