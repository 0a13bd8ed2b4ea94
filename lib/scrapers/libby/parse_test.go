package libby

import (
	"strings"
	"testing"

	"libbydl/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func doc(t testing.TB, markup string) *goquery.Document {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return d
}

func TestParseLibraryResults(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:lib/scrapers/libby")
	defer cleanup()

	d := doc(t, `
<div class="library-autocomplete">
	<button class="library-autocomplete-result">
		<h2 class="library-branch-details-system-name">Boston Public Library</h2>
		<h3 class="library-branch-details-branch-name">Central&nbsp;Branch</h3>
	</button>
	<button class="library-autocomplete-result">
		<h2 class="library-branch-details-system-name">Minuteman Library Network</h2>
	</button>
	<button class="library-autocomplete-result"></button>
</div>`)

	results := ParseLibraryResults(d)
	require.Len(t, results, 2)
	require.Equal(t, "Boston Public Library", results[0].System)
	require.Equal(t, "Central Branch", results[0].Branch)
	require.Equal(t, "Boston Public Library (Central Branch)", results[0].String())
	require.Equal(t, "Minuteman Library Network", results[1].String())
}

func TestParseCardUsageOptions(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:lib/scrapers/libby")
	defer cleanup()

	d := doc(t, `
<div class="auth-ils-list">
	<button>
		I mostly use my card at
		<b>Central Library</b>
	</button>
	<button>I visit all branches equally</button>
</div>`)

	options := ParseCardUsageOptions(d)
	require.Equal(t, []string{
		"I mostly use my card at Central Library",
		"I visit all branches equally",
	}, options)
}

func TestParseShelfTitles(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:lib/scrapers/libby")
	defer cleanup()

	d := doc(t, `
<div class="title-list-tiles">
	<div class="title-tile">
		<div class="title-tile-title">The Stand</div>
		<button>Open Audiobook</button>
	</div>
	<div class="title-tile">
		<div class="title-tile-title">
			Project
			Hail Mary
		</div>
		<button>Open Audiobook</button>
	</div>
</div>`)

	titles := ParseShelfTitles(d)
	require.Equal(t, []string{"The Stand", "Project Hail Mary"}, titles)
}

func TestMatchTitle(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:lib/scrapers/libby")
	defer cleanup()

	titles := []string{"The Stand", "Project Hail Mary", "Dune"}

	require.Equal(t, 0, MatchTitle("The Stand", titles))
	require.Equal(t, 1, MatchTitle("project hail", titles))
	require.Equal(t, 2, MatchTitle("Dune", titles))
	require.Equal(t, -1, MatchTitle("xzqvw", titles))
	require.Equal(t, -1, MatchTitle("anything", nil))
}
