package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestGetText(t *testing.T) {
	node, err := html.Parse(strings.NewReader(`<p>Hello <b>world</b>!</p>`))
	require.NoError(t, err)
	require.Equal(t, "Hello world!", GetText(node))
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "Central Branch", CleanText("Central Branch"))
	require.Equal(t, "a b c", CleanText("  a\n\t\tb   c\n"))
	require.Equal(t, "", CleanText(" \n\t "))
	require.Equal(t, "plain", CleanText("plain"))
}
