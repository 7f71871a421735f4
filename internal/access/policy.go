// Package access maps user roles to the confidentiality levels they may
// read and upload. It is pure: no I/O, no defaults for unknown values.
package access

import "errors"

var (
	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidLevel = errors.New("invalid confidentiality level")
)

type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleAITeam      Role = "AI Team"
	RoleBackendTeam Role = "Backend Team"
)

type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// levelRank orders levels Low < Medium < High.
var levelRank = map[Level]int{
	LevelLow:    0,
	LevelMedium: 1,
	LevelHigh:   2,
}

// maxLevel is the highest level each role may touch. The allowed set of a
// role is always the contiguous prefix of the level order up to this bound,
// which keeps Admin ⊇ AI Team ⊇ Backend Team by construction.
var maxLevel = map[Role]Level{
	RoleAdmin:       LevelHigh,
	RoleAITeam:      LevelMedium,
	RoleBackendTeam: LevelLow,
}

// Roles returns all roles in a stable order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleAITeam, RoleBackendTeam}
}

// Levels returns all confidentiality levels in ascending order.
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh}
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := maxLevel[r]; !ok {
		return "", ErrInvalidRole
	}
	return r, nil
}

func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if _, ok := levelRank[l]; !ok {
		return "", ErrInvalidLevel
	}
	return l, nil
}

// AllowedLevels returns the confidentiality levels visible to the role in
// ascending order. Unknown roles fail with ErrInvalidRole.
func AllowedLevels(role Role) ([]Level, error) {
	bound, ok := maxLevel[role]
	if !ok {
		return nil, ErrInvalidRole
	}
	var allowed []Level
	for _, l := range Levels() {
		if levelRank[l] <= levelRank[bound] {
			allowed = append(allowed, l)
		}
	}
	return allowed, nil
}

// CanUpload reports whether the role may upload a document at the given
// level. Upload permission coincides with read permission for every role.
func CanUpload(role Role, level Level) (bool, error) {
	bound, ok := maxLevel[role]
	if !ok {
		return false, ErrInvalidRole
	}
	rank, ok := levelRank[level]
	if !ok {
		return false, ErrInvalidLevel
	}
	return rank <= levelRank[bound], nil
}

// CanRead reports whether the role may retrieve documents at the given level.
func CanRead(role Role, level Level) (bool, error) {
	return CanUpload(role, level)
}
