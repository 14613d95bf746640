package worker

import (
	"log"
	"time"
)

const sweepInterval = 5 * time.Minute

// SessionSweeperWorker periodically removes phone index entries whose
// session has already expired, so the number can start a fresh signup.
func (wk *Worker) SessionSweeperWorker() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wk.Ctx.Done():
			log.Println("SessionSweeperWorker received cancellation signal, shutting down...")
			return
		case <-ticker.C:
			removed, err := wk.Sessions.Sweep(wk.Ctx)
			if err != nil {
				log.Printf("Error sweeping signup sessions: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("Removed %d dangling signup session index entries", removed)
			}
		}
	}
}
