package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRole_IsValid tests recognised roles
func TestRole_IsValid(t *testing.T) {
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleBot.IsValid())
	assert.False(t, Role("assistant").IsValid())
	assert.False(t, Role("").IsValid())
}

// TestTitleFromQuestion tests title derivation from the first question
func TestTitleFromQuestion(t *testing.T) {
	tests := []struct {
		name     string
		question string
		expected string
	}{
		{"short question kept", "What is X?", "What is X?"},
		{"exactly thirty characters kept", strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{"long question truncated", strings.Repeat("b", 31), strings.Repeat("b", 30) + "..."},
		{"whitespace trimmed", "  hello  ", "hello"},
		{"empty falls back", "   ", DefaultSessionTitle},
		{"multibyte counted as characters", strings.Repeat("é", 35), strings.Repeat("é", 30) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TitleFromQuestion(tt.question))
		})
	}
}

// TestSession_AppendTurn tests that only the first user turn retitles
func TestSession_AppendTurn(t *testing.T) {
	s := &Session{ID: "s1", Title: DefaultSessionTitle}

	s.AppendTurn(Turn{Role: RoleUser, Content: "What is X?"})
	assert.Equal(t, "What is X?", s.Title)

	s.AppendTurn(Turn{Role: RoleBot, Content: "X is..."})
	s.AppendTurn(Turn{Role: RoleUser, Content: "And Y?"})

	assert.Equal(t, "What is X?", s.Title)
	assert.Len(t, s.Messages, 3)
}

// TestSession_Recent tests the history window
func TestSession_Recent(t *testing.T) {
	s := &Session{}
	for i := 0; i < 10; i++ {
		s.AppendTurn(Turn{Role: RoleUser, Content: string(rune('a' + i))})
	}

	recent := s.Recent(8)
	require.Len(t, recent, 8)
	assert.Equal(t, "c", recent[0].Content)
	assert.Equal(t, "j", recent[7].Content)

	recent[0].Content = "mutated"
	assert.Equal(t, "c", s.Messages[2].Content)

	assert.Len(t, s.Recent(50), 10)
	assert.Nil(t, s.Recent(0))
	assert.Nil(t, (&Session{}).Recent(8))
}

// TestSession_JSON tests the persisted history shape
func TestSession_JSON(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Session{
		ID:        "s1",
		Title:     "Hello",
		CreatedAt: created,
		Messages: []Turn{
			{Role: RoleUser, Content: "Hello", Timestamp: created},
			{Role: RoleBot, Content: "Hi", Sources: []string{"a.pdf (Page 1)"}, Timestamp: created},
		},
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "s1", raw["id"])
	assert.Contains(t, raw, "created_at")

	msgs := raw["messages"].([]any)
	first := msgs[0].(map[string]any)
	assert.NotContains(t, first, "sources")
	second := msgs[1].(map[string]any)
	assert.Equal(t, "bot", second["role"])
	assert.Equal(t, []any{"a.pdf (Page 1)"}, second["sources"])
}

// TestSession_Summary tests the listing form
func TestSession_Summary(t *testing.T) {
	now := time.Now()
	s := &Session{ID: "s1", Title: "T", CreatedAt: now, Messages: []Turn{{Role: RoleUser}}}
	assert.Equal(t, SessionSummary{ID: "s1", Title: "T", CreatedAt: now}, s.Summary())
}

func TestValidateSessionID(t *testing.T) {
	valid := []string{
		"2f1c9a0e-5b7d-4c1e-9f3a-0d6b2e8c4a11",
		"s1",
		"quarterly_report.v2",
	}
	for _, id := range valid {
		assert.NoError(t, ValidateSessionID(id), id)
	}

	assert.ErrorIs(t, ValidateSessionID(""), ErrMissingSession)

	invalid := []string{
		".",
		"..",
		"../config",
		"a/b",
		`a\b`,
		"/etc",
		".hidden",
		"id with space",
		"id\x00",
		strings.Repeat("a", 129),
	}
	for _, id := range invalid {
		assert.ErrorIs(t, ValidateSessionID(id), ErrInvalidInput, id)
	}
}
