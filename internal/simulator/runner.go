package simulator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/pkg/logger"
)

// Run creates the match, replays the generated events in clock order and
// logs a summary of the final state. Individual event failures are counted,
// not fatal; an unknown match aborts the run.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	log := logger.Get().Named("simulator")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting match simulation",
		logger.String("baseURL", config.BaseURL),
		logger.String("matchID", config.MatchID),
		logger.Any("seed", config.Seed),
		logger.Int("halfMinutes", config.HalfMinutes),
		logger.Float64("eventProbability", config.EventProbability),
		logger.Duration("delay", config.Delay))

	client := NewClient(config.BaseURL, config.Timeout)

	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	if config.Create {
		created, err := client.CreateMatch(ctx, config.MatchID, config.HomeTeam, config.AwayTeam)
		if err != nil {
			return stats, fmt.Errorf("match creation failed: %w", err)
		}
		stats.MatchCreated = created
		if created {
			log.Info(ctx, "created match", logger.String("matchID", config.MatchID))
		} else {
			log.Info(ctx, "match already exists, streaming events", logger.String("matchID", config.MatchID))
		}
	}

	events := Generate(config.MatchID, config.Seed, config.HalfMinutes, config.EventProbability)
	stats.EventsGenerated = len(events)

	for i, e := range events {
		outcome, err := client.PostEvent(ctx, e)
		switch {
		case errors.Is(err, ErrMatchUnknown):
			stats.EventsFailed += len(events) - i
			finish(stats)
			return stats, err
		case err != nil:
			if ctx.Err() != nil {
				finish(stats)
				return stats, ctx.Err()
			}
			stats.EventsFailed++
			log.Warn(ctx, "event failed", logger.String("eventID", e.EventID), logger.Error(err))
		case outcome == OutcomeDuplicate:
			stats.EventsDuplicate++
		default:
			stats.EventsAccepted++
		}

		if config.Verbose {
			log.Info(ctx, "posted event",
				logger.String("eventID", e.EventID),
				logger.String("clock", fmt.Sprintf("p%d %d:%02d", e.Clock.Period, e.Clock.Minute, e.Clock.Second)),
				logger.String("eventType", e.EventType),
				logger.String("side", e.TeamSide))
		}

		if config.Delay > 0 {
			select {
			case <-ctx.Done():
				finish(stats)
				return stats, ctx.Err()
			case <-time.After(config.Delay):
			}
		}
	}

	finish(stats)
	logSummary(ctx, log, client, config.MatchID, stats)
	return stats, nil
}

func finish(stats *Stats) {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
}

// logSummary logs the run counters, the final score and the latest metrics.
func logSummary(ctx context.Context, log logger.Logger, client *Client, matchID string, stats *Stats) {
	log.Info(ctx, "simulation finished",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Duration("duration", stats.Duration))

	if state, err := client.MatchState(ctx, matchID); err == nil {
		log.Info(ctx, "match state",
			logger.String("score", fmt.Sprintf("%s %d-%d %s", state.HomeTeam, state.Score.Home, state.Score.Away, state.AwayTeam)),
			logger.String("status", state.Status),
			logger.String("clock", fmt.Sprintf("p%d %d:%02d", state.Clock.Period, state.Clock.Minute, state.Clock.Second)))
	}

	snap, err := client.LatestAnalytics(ctx, matchID)
	if err != nil {
		return
	}
	fields := make([]logger.Field, 0, len(snap.DerivedMetrics)+1)
	for _, metric := range []string{model.MetricPressureIndex, model.MetricMomentum, model.MetricFieldTilt, model.MetricDangerNext5m} {
		if values, ok := snap.DerivedMetrics[metric]; ok {
			fields = append(fields, logger.String(metric, fmt.Sprintf("HOME %.2f | AWAY %.2f", values[string(model.Home)], values[string(model.Away)])))
		}
	}
	if len(snap.Why) > 0 {
		fields = append(fields, logger.String("why", strings.Join(snap.Why, " | ")))
	}
	log.Info(ctx, "latest analytics", fields...)
}
