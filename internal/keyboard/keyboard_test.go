package keyboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayoutForFallsBackToEnglish(t *testing.T) {
	t.Parallel()

	require.True(t, HasLayout("hi"))
	require.False(t, HasLayout("ta"))
	require.Equal(t, LayoutFor("en"), LayoutFor("ta"))
	require.True(t, LayoutFor("hi").Contains("क"))
	require.False(t, LayoutFor("en").Contains("क"))
}

func TestEveryLayoutHasControlRow(t *testing.T) {
	t.Parallel()

	for lang, layout := range layouts {
		last := layout[len(layout)-1]
		require.Equal(t, []string{KeySpace, KeyBackspace, KeyEnter}, last, lang)
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	out, submit := Apply("whea", "t")
	require.Equal(t, "wheat", out)
	require.False(t, submit)

	out, submit = Apply("wheat", KeyBackspace)
	require.Equal(t, "whea", out)
	require.False(t, submit)

	out, submit = Apply("", KeyBackspace)
	require.Equal(t, "", out)
	require.False(t, submit)

	out, submit = Apply("wheat", KeyEnter)
	require.Equal(t, "wheat", out)
	require.True(t, submit)
}

func TestApplyBackspaceRemovesWholeRune(t *testing.T) {
	t.Parallel()

	out, _ := Apply("गेहूँ", KeyBackspace)
	require.Equal(t, "गेहू", out)
}
