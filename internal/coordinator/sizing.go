package coordinator

import (
	"github.com/eshanized/ERPCT/internal/models"
)

// chunkSizeFor computes the next chunk size for a worker. With adaptive
// sizing enabled the size is scaled so chunk completion time trends
// toward the configured target duration, clamped to [min, max]. Without
// a target duration, or before any completion has been observed, the
// base size is used.
func (c *Coordinator) chunkSizeFor(worker *models.WorkerRecord) int {
	if c.cfg.TargetChunkDuration <= 0 {
		return c.cfg.ChunkSize
	}

	observed := worker.AverageCompletion()
	if observed <= 0 {
		return c.cfg.ChunkSize
	}

	base := worker.NextChunkSize
	if base <= 0 {
		base = c.cfg.ChunkSize
	}

	scaled := int(float64(base) * float64(c.cfg.TargetChunkDuration) / float64(observed))
	return clamp(scaled, c.cfg.MinChunkSize, c.cfg.MaxChunkSize)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
