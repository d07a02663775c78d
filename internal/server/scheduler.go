package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	core "github.com/museworks/museflow/internal/agent/core"
	"github.com/museworks/museflow/internal/store"
)

// Scheduler re-runs saved project searches ("digests") on their cron
// schedule. A Redis lock keeps multiple instances from firing the same
// search.
type Scheduler struct {
	Store    *store.Store
	Engine   *core.Engine
	Rdb      *redis.Client
	Interval time.Duration
	LockTTL  time.Duration
	Stop     chan struct{}

	logger *log.Logger
}

func (s *Scheduler) Start() {
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	if s.Interval <= 0 {
		s.Interval = time.Hour
	}
	if s.LockTTL <= 0 {
		s.LockTTL = 2 * time.Minute
	}
	ticker := time.NewTicker(s.Interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	searches, err := s.Store.ListSavedSearches(ctx)
	if err != nil {
		s.logger.Printf("list saved searches: %v", err)
		return
	}
	for _, ss := range searches {
		if !isDue(ss.CronExpr, ss.LastRunAt) {
			continue
		}
		if s.Rdb != nil {
			lockKey := "sched:lock:" + ss.ID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", s.LockTTL).Result()
			if !ok {
				continue
			}
		}
		if err := s.Store.TouchSavedSearch(ctx, ss.ID); err != nil {
			s.logger.Printf("touch saved search %s: %v", ss.ID, err)
			continue
		}

		go func(ss store.SavedSearch) {
			// jitter to avoid stampedes
			time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)
			threadID := uuid.NewString()
			final, err := s.Engine.Run(ctx, core.PlanState{InitialRequest: ss.Query}, threadID)
			if err != nil {
				s.logger.Printf("digest %s failed: %v", ss.ID, err)
				agentRunsTotal.WithLabelValues("failed").Inc()
				return
			}
			agentRunsTotal.WithLabelValues("succeeded").Inc()
			summary := ""
			if final.FinalSummary != nil {
				summary = final.FinalSummary.TextSummary
			}
			if _, err := s.Store.AppendAgentResult(ctx, ss.ProjectID, threadID, "assistant", summary); err != nil {
				s.logger.Printf("digest %s persist: %v", ss.ID, err)
			}
		}(ss)
	}
}

// isDue determines whether a search with cronSpec should run now, given its
// last run time. Supports "@daily", "@hourly", and standard cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// invalid spec degrades to @daily
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
