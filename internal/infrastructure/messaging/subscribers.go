package messaging

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
	"github.com/thrivepath/practice-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// Chain applies middlewares around a handler, outermost first.
func Chain(handler shared.EventHandler, middlewares ...Middleware) shared.EventHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// RecoveryMiddleware recovers from panics in handlers and turns them into
// errors.
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panic recovered",
						logger.String("event_type", string(event.EventType())),
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs handler execution.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			duration := time.Since(start)

			if err != nil {
				log.Error("handler failed",
					logger.String("event_type", string(event.EventType())),
					logger.String("aggregate_id", event.AggregateID()),
					logger.Duration("duration", duration),
					logger.Err(err),
				)
			} else {
				log.Debug("handler completed",
					logger.String("event_type", string(event.EventType())),
					logger.String("aggregate_id", event.AggregateID()),
					logger.Duration("duration", duration),
				)
			}

			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE SUBSCRIBERS
// ══════════════════════════════════════════════════════════════════════════════

// SubscriberConfig carries the dependencies engine subscribers need.
type SubscriberConfig struct {
	// LeaderboardCache is invalidated whenever a summary changes. Optional;
	// when nil the invalidation subscriber is not registered.
	LeaderboardCache progress.LeaderboardCache

	// Timeout bounds cache operations triggered by events.
	Timeout time.Duration

	Logger *logger.Logger
}

// WireSubscribers registers the engine's standing event subscribers on the
// bus. Handlers read the event payload rather than concrete types so they
// also work for events replayed from other instances.
func WireSubscribers(bus shared.EventSubscriber, cfg SubscriberConfig) error {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	log := cfg.Logger.With(logger.Component("subscribers"))
	mw := []Middleware{RecoveryMiddleware(log), LoggingMiddleware(log)}

	if cfg.LeaderboardCache != nil {
		invalidate := Chain(invalidateLeaderboard(cfg.LeaderboardCache, cfg.Timeout, log), mw...)
		if err := bus.Subscribe(shared.EventProgressUpdated, invalidate); err != nil {
			return fmt.Errorf("subscribe %s: %w", shared.EventProgressUpdated, err)
		}
	}

	celebrate := Chain(logMilestone(log), mw...)
	if err := bus.Subscribe(shared.EventLevelUp, celebrate); err != nil {
		return fmt.Errorf("subscribe %s: %w", shared.EventLevelUp, err)
	}
	if err := bus.Subscribe(shared.EventAchievementUnlocked, celebrate); err != nil {
		return fmt.Errorf("subscribe %s: %w", shared.EventAchievementUnlocked, err)
	}

	return nil
}

// invalidateLeaderboard drops the cached leaderboard for the app whose
// summary changed. The next read repopulates it from the repository.
func invalidateLeaderboard(cache progress.LeaderboardCache, timeout time.Duration, log *logger.Logger) shared.EventHandler {
	return func(event shared.Event) error {
		appID, ok := payloadString(event, "app_id")
		if !ok {
			return fmt.Errorf("event %s has no app_id", event.EventType())
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := cache.Invalidate(ctx, catalog.AppID(appID)); err != nil {
			return fmt.Errorf("invalidate leaderboard for %s: %w", appID, err)
		}

		log.Debug("leaderboard invalidated", logger.AppID(appID))
		return nil
	}
}

// logMilestone emits an info record for user-visible milestones. The record
// is the integration point for future notification delivery.
func logMilestone(log *logger.Logger) shared.EventHandler {
	return func(event shared.Event) error {
		fields := []logger.Field{
			logger.String("event_type", string(event.EventType())),
		}
		if appID, ok := payloadString(event, "app_id"); ok {
			fields = append(fields, logger.AppID(appID))
		}
		if userID, ok := payloadString(event, "user_id"); ok {
			fields = append(fields, logger.UserID(userID))
		}
		if achievementID, ok := payloadString(event, "achievement_id"); ok {
			fields = append(fields, logger.Achievement(achievementID))
		}

		log.Info("milestone reached", fields...)
		return nil
	}
}

func payloadString(event shared.Event, key string) (string, bool) {
	v, ok := event.Payload()[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
