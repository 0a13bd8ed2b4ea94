package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "thestand", NormalizeName("  The Stand\n"))
	require.Equal(t, "projecthailmary", NormalizeName("Project\tHail Mary"))
}

func TestSafeFilename(t *testing.T) {
	require.Equal(t, "The_Stand", SafeFilename("The Stand"))
	require.Equal(t, "Hitchhiker_s_Guide", SafeFilename("Hitchhiker's Guide"))
	require.Equal(t, "A_B", SafeFilename("  A/B?  "))
	require.Equal(t, "book.mp3", SafeFilename("book.mp3"))
}
