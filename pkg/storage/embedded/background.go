package embedded

import (
	"time"

	"github.com/rs/zerolog/log"
)

// startBackgroundSaver starts the periodic snapshot worker when an interval is configured
func (e *Engine) startBackgroundSaver() {
	if e.snapshotInterval <= 0 || e.path == "" {
		return
	}

	e.backgroundWg.Add(1)
	go func() {
		defer e.backgroundWg.Done()
		ticker := time.NewTicker(e.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.saveIfDirty()
			case <-e.stopChan:
				return
			}
		}
	}()
}

// stopBackgroundSaver stops background workers
func (e *Engine) stopBackgroundSaver() {
	select {
	case <-e.stopChan:
		// Channel already closed, do nothing
	default:
		close(e.stopChan)
	}
	e.backgroundWg.Wait()
}

func (e *Engine) saveIfDirty() {
	if !e.isDirty() {
		log.Debug().Msg("no changes to snapshot")
		return
	}

	start := time.Now()
	if err := e.Save(); err != nil {
		log.Error().Err(err).Str("path", e.path).Msg("background snapshot failed")
		return
	}
	log.Info().Str("path", e.path).Dur("elapsed", time.Since(start)).Msg("background snapshot saved")
}
