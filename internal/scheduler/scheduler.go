package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler periodically snapshots the chat histories to disk. Every append
// already flushes synchronously; this is the safety net that also picks up a
// final consistent snapshot at a steady cadence.
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration
	flush    func() error
}

func New(interval time.Duration, flush func() error) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		interval: interval,
		flush:    flush,
	}
}

func (s *Scheduler) Start() error {
	if s.flush == nil || s.interval <= 0 {
		log.Println("history snapshot scheduler disabled")
		return nil
	}

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		if err := s.flush(); err != nil {
			log.Printf("periodic history snapshot failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("history snapshot scheduler started (every %s)", s.interval)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	log.Println("history snapshot scheduler stopped")
}
