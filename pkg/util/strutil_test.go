package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateShortTextUnchanged(t *testing.T) {
	require.Equal(t, "hello", Truncate("hello", 80))
	require.Equal(t, "", Truncate("", 80))
}

func TestTruncateAppendsEllipsis(t *testing.T) {
	out := Truncate(strings.Repeat("x", 100), 80)
	require.Len(t, out, 80)
	require.True(t, strings.HasSuffix(out, "..."))
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	out := Truncate(strings.Repeat("é", 100), 80)
	require.True(t, utf8.ValidString(out))
	require.Equal(t, 80, utf8.RuneCountInString(out))
	require.True(t, strings.HasSuffix(out, "..."))

	out = Truncate(strings.Repeat("日本語", 50), 10)
	require.True(t, utf8.ValidString(out))
	require.Equal(t, 10, utf8.RuneCountInString(out))
}

func TestTruncateTinyBudget(t *testing.T) {
	require.Equal(t, "ab", Truncate("abcdef", 2))
	require.True(t, utf8.ValidString(Truncate("ééééé", 2)))
}
