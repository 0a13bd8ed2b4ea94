package libby

import "time"

// These selectors mirror the current libbyapp.com markup. They are
// expected to break whenever the site's markup changes; nothing here
// is load-bearing beyond "this is what the site looks like today".
const (
	selYesCardButton       = `//button[contains(., "Yes, I Have A Library Card")]`
	selSearchLibraryButton = `//button[contains(., "Search For A Library")]`
	selLibrarySearchInput  = `#shibui-form-input-control-0001`
	selLibraryResult       = `button.library-autocomplete-result`
	selLibrarySystemName   = `h2.library-branch-details-system-name`
	selLibraryBranchName   = `h3.library-branch-details-branch-name`
	selSignInWithCard      = `//button[contains(., "Sign In With My Card")]`
	selCardUsageButtons    = `.auth-ils-list button`
	selCardNumberInput     = `#shibui-form-input-control-0002`
	selNextButton          = `//button[contains(., "Next")]`
	selPinInput            = `#shibui-form-input-control-0003`
	selSignInButton        = `//button[contains(., "Sign In")]`

	selShelfButton = `#footer-nav-shelf`
	selTitleTiles  = `.title-list-tiles .title-tile`
	selTileTitle   = `.title-tile-title`
	selNextChapter = `button.chapter-bar-next-button`
	selPrevChapter = `button[aria-label*="Previous chapter"]`
)

// indexed variants, 1-based
const (
	selNthLibraryResult = `(//button[contains(@class, "library-autocomplete-result")])[%d]`
	selNthCardUsage     = `(//*[contains(@class, "auth-ils-list")]//button)[%d]`
	selNthOpenAudiobook = `(//div[contains(@class, "title-tile")])[%d]//button[contains(., "Open Audiobook")]`
)

// The site gives no reliable signal for "done rendering" or "done
// buffering", so fixed sleeps stand in for synchronization, same as
// any other driver of this app would.
const (
	settleShort    = 2 * time.Second
	settleMedium   = 3 * time.Second
	playerLoadWait = 5 * time.Second
	partLoadWait   = 30 * time.Second
	recoveryWait   = 5 * time.Second
	seekBackWait   = 1 * time.Second

	clickTimeout       = 15 * time.Second
	shortClickTimeout  = 5 * time.Second
	seekClickTimeout   = 2 * time.Second
	resultsWaitTimeout = 15 * time.Second
	optionsWaitTimeout = 10 * time.Second
	htmlTimeout        = 10 * time.Second
	navigateTimeout    = 60 * time.Second
)

const (
	maxForwardClicks       = 500
	maxNoNewPartIterations = 10
	recoveryAttempts       = 3
	recoverySeekBackClicks = 2
)
