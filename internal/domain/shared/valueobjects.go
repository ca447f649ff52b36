package shared

// ═══════════════════════════════════════════════════════════════════════════
// UserID Value Object
// ═══════════════════════════════════════════════════════════════════════════

// UserID is the opaque identifier of an authenticated user.
// Identity is owned by the auth subsystem; the engine never interprets it.
type UserID string

// IsValid checks if the user ID is non-empty.
func (u UserID) IsValid() bool {
	return u != ""
}

// String returns the string representation of UserID.
func (u UserID) String() string {
	return string(u)
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points accumulated from completed sessions.
type XP int

const (
	// XP boundaries
	MinXP XP = 0
	MaxXP XP = 1000000 // 1 million XP cap
)

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP && x <= MaxXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds XP and returns the result, capped at MaxXP.
func (x XP) Add(amount int) XP {
	result := XP(int(x) + amount)
	if result > MaxXP {
		return MaxXP
	}
	if result < MinXP {
		return MinXP
	}
	return result
}

// Level calculates the level based on XP.
// Progressive cost: reaching level L+1 from L costs 100*L XP.
func (x XP) Level() Level {
	if x <= 0 {
		return 1
	}
	level := 1
	requiredXP := 100
	totalRequired := 0
	for totalRequired+requiredXP <= int(x) {
		totalRequired += requiredXP
		level++
		requiredXP = 100 * level
	}
	return Level(level)
}

// NewXP creates a new XP value with validation.
func NewXP(amount int) (XP, error) {
	if amount < int(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	if amount > int(MaxXP) {
		return MaxXP, nil // Cap at max
	}
	return XP(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level within one app, derived from XP.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 100
)

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the total XP required to reach this level.
func (l Level) RequiredXP() int {
	if l <= 1 {
		return 0
	}
	total := 0
	for i := Level(1); i < l; i++ {
		total += 100 * int(i)
	}
	return total
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Score represents the points earned in a single session.
type Score int

// IsValid checks that the score is non-negative.
func (s Score) IsValid() bool {
	return s >= 0
}

// Int returns the underlying int value.
func (s Score) Int() int {
	return int(s)
}

// ValidateScore checks a score against an app's scoring ceiling.
func ValidateScore(score, maxScore Score) error {
	if score < 0 {
		return NewDomainError("shared", "ValidateScore", ErrNegativeValue, "score cannot be negative")
	}
	if maxScore >= 0 && score > maxScore {
		return NewDomainError("shared", "ValidateScore", ErrValueOutOfRange, "score exceeds app max score")
	}
	return nil
}
