// Package extractor finds payment and contact artifacts in scam messages.
package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

var (
	urlRe      = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"'` + "`" + `]+`)
	bareHostRe = regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+(?:com|in|net|org|info|xyz|top|site|online|live|link|click|co|io|ly|me|gl|gd|at|cc|app|shop|store|biz)\b(?:/[^\s<>"']*)?`)
	emailRe    = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9\-]+(?:\.[a-z0-9\-]+)+\b`)
	upiRe      = regexp.MustCompile(`(?i)\b([a-z0-9][a-z0-9.\-_]{1,255})@([a-z][a-z0-9]{1,63})\b`)
	ifscRe     = regexp.MustCompile(`(?i)\b[a-z]{4}0[a-z0-9]{6}\b`)
	digitRunRe = regexp.MustCompile(`\b\d{9,18}\b`)
	phoneRe    = regexp.MustCompile(`(?:\+\d{1,3}[\s\-]?)?\(?\d{2,5}\)?(?:[\s\-.]\d{2,5}){1,4}\b`)

	// Digit groups that are never phone numbers or accounts.
	dateRe   = regexp.MustCompile(`\b(?:\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})\b`)
	clockRe  = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	dottedRe = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)

	// accountContextRe matches words that announce a bank account number.
	accountContextRe = regexp.MustCompile(`(?i)(?:account|a/c|acct|acc|bank)\.?\s*(?:no\.?|number|num|#)?\s*(?:is)?\s*[:\-]?\s*$`)

	// Output validators. Every emitted value must match one of these.
	validUPI   = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-_]{1,255}@[a-z][a-z0-9]{1,63}$`)
	validIFSC  = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	validPhone = regexp.MustCompile(`^\d{10,13}$`)
	validBank  = regexp.MustCompile(`^\d{9,18}$`)
)

// accountContextWindow is how far back we look for an account keyword.
const accountContextWindow = 32

// Extractor scans message text for intelligence artifacts. It holds only
// immutable configuration and is safe for concurrent use.
type Extractor struct {
	keywords    []string
	shorteners  map[string]struct{}
	upiSuffixes map[string]struct{}
}

// New creates an Extractor. Empty config fields fall back to the defaults.
func New(cfg Config) *Extractor {
	cfg = cfg.withDefaults()

	e := &Extractor{
		shorteners:  make(map[string]struct{}, len(cfg.ShortenerDomains)),
		upiSuffixes: make(map[string]struct{}, len(cfg.UPISuffixes)),
	}
	seen := make(map[string]struct{}, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		e.keywords = append(e.keywords, kw)
	}
	for _, d := range cfg.ShortenerDomains {
		e.shorteners[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	for _, s := range cfg.UPISuffixes {
		e.upiSuffixes[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return e
}

// Extract returns the artifacts found in text and in the scammer's side of
// history. It has no side effects. Anything it cannot parse is treated as
// absence of evidence; the error is non-nil only when scanning aborted, and the
// returned intelligence is then empty.
func (e *Extractor) Extract(text string, history []models.Message) (intel models.Intelligence, err error) {
	intel = models.NewIntelligence()
	defer func() {
		if r := recover(); r != nil {
			intel = models.NewIntelligence()
			err = fmt.Errorf("extraction aborted: %v", r)
		}
	}()

	sources := make([]string, 0, len(history)+1)
	for _, m := range history {
		if m.Sender == models.SenderAgent {
			continue
		}
		sources = append(sources, m.Text)
	}
	sources = append(sources, text)

	for _, src := range sources {
		e.keywordsIn(src, intel)
	}
	suspicious := len(intel.Values(models.KindSuspiciousKeyword)) > 0

	for _, src := range sources {
		e.scan(src, suspicious, intel)
	}
	return intel, nil
}

// scan extracts everything but keywords from a single text. Matched spans are
// blanked out so later patterns do not reclassify them.
func (e *Extractor) scan(text string, suspicious bool, intel models.Intelligence) {
	if strings.TrimSpace(text) == "" {
		return
	}
	buf := []byte(text)

	for _, loc := range urlRe.FindAllIndex(buf, -1) {
		e.addURL(string(buf[loc[0]:loc[1]]), suspicious, intel)
		blank(buf, loc)
	}

	for _, loc := range upiRe.FindAllSubmatchIndex(buf, -1) {
		// A dot right after the suffix means this is an email, not a UPI handle.
		if loc[1] < len(buf)-1 && buf[loc[1]] == '.' && isAlnum(buf[loc[1]+1]) {
			continue
		}
		suffix := strings.ToLower(string(buf[loc[4]:loc[5]]))
		if !e.plausibleSuffix(suffix) {
			continue
		}
		id := strings.ToLower(string(buf[loc[0]:loc[1]]))
		if validUPI.MatchString(id) {
			intel.Add(models.KindUPIID, id)
		}
		blank(buf, loc[:2])
	}

	for _, loc := range emailRe.FindAllIndex(buf, -1) {
		blank(buf, loc)
	}

	for _, loc := range bareHostRe.FindAllIndex(buf, -1) {
		e.addURL(string(buf[loc[0]:loc[1]]), suspicious, intel)
		blank(buf, loc)
	}

	for _, loc := range ifscRe.FindAllIndex(buf, -1) {
		code := strings.ToUpper(string(buf[loc[0]:loc[1]]))
		if validIFSC.MatchString(code) {
			intel.Add(models.KindIFSCCode, code)
			blank(buf, loc)
		}
	}

	for _, re := range []*regexp.Regexp{dottedRe, dateRe, clockRe} {
		for _, loc := range re.FindAllIndex(buf, -1) {
			blank(buf, loc)
		}
	}

	for _, loc := range digitRunRe.FindAllIndex(buf, -1) {
		digits := string(buf[loc[0]:loc[1]])
		switch {
		case afterAccountWord(buf, loc[0]) && validBank.MatchString(digits):
			intel.Add(models.KindBankAccount, digits)
		case validPhone.MatchString(digits):
			intel.Add(models.KindPhoneNumber, digits)
		case validBank.MatchString(digits):
			intel.Add(models.KindBankAccount, digits)
		}
		blank(buf, loc)
	}

	for _, loc := range phoneRe.FindAllIndex(buf, -1) {
		digits := digitsOnly(string(buf[loc[0]:loc[1]]))
		switch {
		case afterAccountWord(buf, loc[0]) && validBank.MatchString(digits):
			intel.Add(models.KindBankAccount, digits)
		case validPhone.MatchString(digits):
			intel.Add(models.KindPhoneNumber, digits)
		}
	}
}

// afterAccountWord reports whether the digits starting at start are announced
// as a bank account.
func afterAccountWord(buf []byte, start int) bool {
	return accountContextRe.Match(buf[max(0, start-accountContextWindow):start])
}

// keywordsIn records every configured keyword that occurs in text.
func (e *Extractor) keywordsIn(text string, intel models.Intelligence) {
	lower := strings.ToLower(text)
	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			intel.Add(models.KindSuspiciousKeyword, kw)
		}
	}
}

func (e *Extractor) addURL(raw string, suspicious bool, intel models.Intelligence) {
	u := strings.TrimRight(raw, ".,;:!?)]}'\"")
	if u == "" {
		return
	}
	intel.Add(models.KindURL, u)
	if suspicious || e.isShortener(u) {
		intel.Add(models.KindPhishingLink, u)
	}
}

func (e *Extractor) isShortener(u string) bool {
	host := strings.ToLower(u)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexAny(host, "/?#:"); i >= 0 {
		host = host[:i]
	}
	_, ok := e.shorteners[host]
	return ok
}

// plausibleSuffix accepts configured PSP handles and anything else that looks
// like one: letters and digits only, short, starting with a letter.
func (e *Extractor) plausibleSuffix(suffix string) bool {
	if _, ok := e.upiSuffixes[suffix]; ok {
		return true
	}
	return len(suffix) >= 2 && len(suffix) <= 20
}

// Keywords returns the active keyword list.
func (e *Extractor) Keywords() []string {
	return append([]string(nil), e.keywords...)
}

func blank(buf []byte, loc []int) {
	for i := loc[0]; i < loc[1]; i++ {
		buf[i] = ' '
	}
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func digitsOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
