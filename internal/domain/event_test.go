package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abc", 200))
	assert.Equal(t, "ab", TruncateRunes("abcde", 2))
	assert.Equal(t, "", TruncateRunes("abc", 0))

	// Мультибайтовый символ не режется посередине
	got := TruncateRunes(strings.Repeat("я", 300), 200)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 200, utf8.RuneCountInString(got))
}

func TestToolEvent_OmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(DoneEvent())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"done"}`, string(raw))

	raw, err = json.Marshal(TextEvent("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","delta":"hello"}`, string(raw))
}
