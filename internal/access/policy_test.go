package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedLevels(t *testing.T) {
	tests := []struct {
		name string
		role Role
		want []Level
	}{
		{name: "admin sees everything", role: RoleAdmin, want: []Level{LevelLow, LevelMedium, LevelHigh}},
		{name: "ai team capped at medium", role: RoleAITeam, want: []Level{LevelLow, LevelMedium}},
		{name: "backend team capped at low", role: RoleBackendTeam, want: []Level{LevelLow}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AllowedLevels(tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllowedLevelsUnknownRole(t *testing.T) {
	_, err := AllowedLevels(Role("Intern"))
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = AllowedLevels(Role(""))
	assert.ErrorIs(t, err, ErrInvalidRole)

	// Case matters: "admin" is not a role.
	_, err = AllowedLevels(Role("admin"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestCanUpload(t *testing.T) {
	tests := []struct {
		role  Role
		level Level
		want  bool
	}{
		{RoleAdmin, LevelLow, true},
		{RoleAdmin, LevelMedium, true},
		{RoleAdmin, LevelHigh, true},
		{RoleAITeam, LevelLow, true},
		{RoleAITeam, LevelMedium, true},
		{RoleAITeam, LevelHigh, false},
		{RoleBackendTeam, LevelLow, true},
		{RoleBackendTeam, LevelMedium, false},
		{RoleBackendTeam, LevelHigh, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.level), func(t *testing.T) {
			got, err := CanUpload(tt.role, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanUploadInvalidInputs(t *testing.T) {
	_, err := CanUpload(Role("Intern"), LevelLow)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = CanUpload(RoleAdmin, Level("Top Secret"))
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestCanReadMatchesCanUpload(t *testing.T) {
	for _, role := range Roles() {
		for _, level := range Levels() {
			up, err := CanUpload(role, level)
			require.NoError(t, err)
			read, err := CanRead(role, level)
			require.NoError(t, err)
			assert.Equal(t, up, read, "role %s level %s", role, level)
		}
	}
}

func TestAllowedSetsAreNested(t *testing.T) {
	admin, err := AllowedLevels(RoleAdmin)
	require.NoError(t, err)
	ai, err := AllowedLevels(RoleAITeam)
	require.NoError(t, err)
	backend, err := AllowedLevels(RoleBackendTeam)
	require.NoError(t, err)

	contains := func(set []Level, l Level) bool {
		for _, s := range set {
			if s == l {
				return true
			}
		}
		return false
	}
	for _, l := range backend {
		assert.True(t, contains(ai, l))
	}
	for _, l := range ai {
		assert.True(t, contains(admin, l))
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("AI Team")
	require.NoError(t, err)
	assert.Equal(t, RoleAITeam, role)

	_, err = ParseRole("ai team")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("High")
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, level)

	_, err = ParseLevel("HIGH")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}
