// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the engine.
const (
	// Session events
	EventSessionOpened    EventType = "session.opened"
	EventSessionCompleted EventType = "session.completed"
	EventSessionAbandoned EventType = "session.abandoned"

	// Progress events
	EventProgressUpdated EventType = "progress.updated"
	EventLevelUp         EventType = "progress.level_up"
	EventMasteryAdvanced EventType = "progress.mastery_advanced"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionOpenedEvent is emitted when a user starts an activity.
type SessionOpenedEvent struct {
	BaseEvent
	AppID  string `json:"app_id"`
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
}

// Payload implements Event interface.
func (e SessionOpenedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"app_id":  e.AppID,
		"user_id": e.UserID,
		"kind":    e.Kind,
	}
}

// NewSessionOpenedEvent creates a new SessionOpenedEvent.
func NewSessionOpenedEvent(sessionID, appID, userID, kind string) SessionOpenedEvent {
	return SessionOpenedEvent{
		BaseEvent: NewBaseEvent(EventSessionOpened, sessionID),
		AppID:     appID,
		UserID:    userID,
		Kind:      kind,
	}
}

// SessionCompletedEvent is emitted when a session reaches the completed state
// and its outcome has been applied to the progress summary.
type SessionCompletedEvent struct {
	BaseEvent
	AppID    string        `json:"app_id"`
	UserID   string        `json:"user_id"`
	Score    int           `json:"score"`
	MaxScore int           `json:"max_score"`
	Duration time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e SessionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"app_id":    e.AppID,
		"user_id":   e.UserID,
		"score":     e.Score,
		"max_score": e.MaxScore,
		"duration":  e.Duration.String(),
	}
}

// NewSessionCompletedEvent creates a new SessionCompletedEvent.
func NewSessionCompletedEvent(sessionID, appID, userID string, score, maxScore int, duration time.Duration) SessionCompletedEvent {
	return SessionCompletedEvent{
		BaseEvent: NewBaseEvent(EventSessionCompleted, sessionID),
		AppID:     appID,
		UserID:    userID,
		Score:     score,
		MaxScore:  maxScore,
		Duration:  duration,
	}
}

// SessionAbandonedEvent is emitted when a session is abandoned.
// Abandoned sessions never contribute to progress.
type SessionAbandonedEvent struct {
	BaseEvent
	AppID  string `json:"app_id"`
	UserID string `json:"user_id"`
}

// Payload implements Event interface.
func (e SessionAbandonedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"app_id":  e.AppID,
		"user_id": e.UserID,
	}
}

// NewSessionAbandonedEvent creates a new SessionAbandonedEvent.
func NewSessionAbandonedEvent(sessionID, appID, userID string) SessionAbandonedEvent {
	return SessionAbandonedEvent{
		BaseEvent: NewBaseEvent(EventSessionAbandoned, sessionID),
		AppID:     appID,
		UserID:    userID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressUpdatedEvent is emitted after a completed session has been folded
// into the progress summary. Aggregate ID is "appID:userID".
type ProgressUpdatedEvent struct {
	BaseEvent
	AppID         string  `json:"app_id"`
	UserID        string  `json:"user_id"`
	TotalSessions int     `json:"total_sessions"`
	BestScore     int     `json:"best_score"`
	AverageScore  float64 `json:"average_score"`
	XP            int     `json:"xp"`
}

// Payload implements Event interface.
func (e ProgressUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"app_id":         e.AppID,
		"user_id":        e.UserID,
		"total_sessions": e.TotalSessions,
		"best_score":     e.BestScore,
		"average_score":  e.AverageScore,
		"xp":             e.XP,
	}
}

// NewProgressUpdatedEvent creates a new ProgressUpdatedEvent.
func NewProgressUpdatedEvent(appID, userID string, totalSessions, bestScore int, averageScore float64, xp int) ProgressUpdatedEvent {
	return ProgressUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventProgressUpdated, appID+":"+userID),
		AppID:         appID,
		UserID:        userID,
		TotalSessions: totalSessions,
		BestScore:     bestScore,
		AverageScore:  averageScore,
		XP:            xp,
	}
}

// LevelUpEvent is emitted when accumulated XP crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	AppID    string `json:"app_id"`
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"app_id":    e.AppID,
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(appID, userID string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, appID+":"+userID),
		AppID:     appID,
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// AchievementUnlockedEvent is emitted when an achievement rule fires for
// the first time for a given (app, user).
type AchievementUnlockedEvent struct {
	BaseEvent
	AppID         string `json:"app_id"`
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	RewardXP      int    `json:"reward_xp"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"app_id":         e.AppID,
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"reward_xp":      e.RewardXP,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(appID, userID, achievementID string, rewardXP int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, appID+":"+userID),
		AppID:         appID,
		UserID:        userID,
		AchievementID: achievementID,
		RewardXP:      rewardXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
