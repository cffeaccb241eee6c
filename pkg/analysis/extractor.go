package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/fault"
)

// headingRe matches a numbered ALL-CAPS section heading on its own line,
// e.g. "7. LIMITATION OF LIABILITY". The capture group is the title.
var headingRe = regexp.MustCompile(`(?m)^[ \t]*\d+[.)]?[ \t]+([A-Z][A-Z0-9&/,'()\- \t]*[A-Z0-9)])[ \t]*$`)

// sectionTypes classifies a heading title into a clause type. Order
// matters: the first matching entry wins, so TERMINATION is tested
// before the bare TERM of a renewal section.
var sectionTypes = []struct {
	clause contracts.ClauseType
	title  *regexp.Regexp
}{
	{contracts.ClauseLiability, regexp.MustCompile(`LIMITATION OF LIABILITY|\bLIABILIT`)},
	{contracts.ClauseIndemnification, regexp.MustCompile(`\bINDEMNIF`)},
	{contracts.ClauseTermination, regexp.MustCompile(`\bTERMINATION\b`)},
	{contracts.ClauseNonCompete, regexp.MustCompile(`NON[- ]?COMPET|NON[- ]?SOLICIT|RESTRICTIVE COVENANT`)},
	{contracts.ClauseConfidentiality, regexp.MustCompile(`CONFIDENTIAL|NON[- ]?DISCLOSURE`)},
	{contracts.ClauseAutoRenewal, regexp.MustCompile(`\bTERM\b|\bRENEWAL\b|\bDURATION\b`)},
	{contracts.ClausePayment, regexp.MustCompile(`\bPAYMENT\b|\bCOMPENSATION\b|\bFEES?\b|\bPRICING\b|\bINVOIC`)},
	{contracts.ClauseIPAssignment, regexp.MustCompile(`INTELLECTUAL PROPERTY|\bIP\b|WORK PRODUCT|\bOWNERSHIP\b`)},
	{contracts.ClauseDataProtection, regexp.MustCompile(`DATA PROT|DATA PRIV|PERSONAL DATA|\bGDPR\b`)},
	{contracts.ClauseWarranty, regexp.MustCompile(`\bWARRANT`)},
	{contracts.ClauseGoverningLaw, regexp.MustCompile(`GOVERNING LAW|\bJURISDICTION\b|APPLICABLE LAW|DISPUTE RESOLUTION`)},
}

// flagRule detects one risk code in clause text. A rule with a scope
// only runs on clauses of that type, plus the general catch-all clause.
// The exclude pattern suppresses the flag when it also matches, which
// stands in for lookaround that RE2 does not support.
type flagRule struct {
	flag    string
	match   *regexp.Regexp
	exclude *regexp.Regexp
	scope   contracts.ClauseType
}

var flagRules = []flagRule{
	{
		flag:  contracts.FlagUnlimitedLiability,
		match: regexp.MustCompile(`(?i)\bunlimited\b|no\s+limit\b|without\s+limit\b`),
		scope: contracts.ClauseLiability,
	},
	{
		flag:  contracts.FlagAutoRenewal,
		match: regexp.MustCompile(`(?i)automatically\s+renew|auto[- ]?renew`),
	},
	{
		flag:  contracts.FlagUnilateralTermination,
		match: regexp.MustCompile(`(?is)(provider|vendor|company)\s+may\s+terminate\b.*?without\s+cause`),
	},
	{
		flag:  contracts.FlagBroadNonCompete,
		match: regexp.MustCompile(`(?i)\bworldwide\b|\bglobal\b|any\s+market`),
		scope: contracts.ClauseNonCompete,
	},
	{
		flag:  contracts.FlagLongNonCompete,
		match: regexp.MustCompile(`(?i)(thirty-six|thirty six|twenty-four|twenty four|forty-eight|forty eight|36|24|48)\s*(\([0-9]+\))?\s*months?\s*(following|after)`),
		scope: contracts.ClauseNonCompete,
	},
	{
		flag:    contracts.FlagOneSidedIndemnity,
		match:   regexp.MustCompile(`(?i)(customer|client|employee|licensee)\s+shall\s+indemnify`),
		exclude: regexp.MustCompile(`(?i)each\s+party|mutual`),
	},
	{
		flag:  contracts.FlagBroadConfidentiality,
		match: regexp.MustCompile(`(?i)all\s+information\s+(disclosed\s+)?(by\s+either\s+party\s+)?in\s+any\s+form`),
	},
	{
		flag:  contracts.FlagIPFavorsProvider,
		match: regexp.MustCompile(`(?i)owned\s+exclusively\s+by\s+(the\s+)?(provider|vendor|company|licensor)`),
	},
	{
		flag:  contracts.FlagHighInterestRate,
		match: regexp.MustCompile(`(?i)(1\.75|1\.5|2\.5|2|3)\s*%\s*per\s*month`),
	},
	{
		flag:  contracts.FlagMissingDataProtection,
		match: regexp.MustCompile(`(?i)\bGDPR\b|\bCCPA\b|data\s+protection`),
		scope: contracts.ClauseDataProtection,
	},
}

var (
	dollarRe   = regexp.MustCompile(`\$([0-9][0-9,]*(?:\.[0-9]{2})?)`)
	monthsRe   = regexp.MustCompile(`(?i)\(?([0-9]+)\)?\s*months?\b`)
	yearsRe    = regexp.MustCompile(`(?i)\(?([0-9]+)\)?\s*years?\b`)
	noticeRe   = regexp.MustCompile(`(?i)\(?([0-9]+)\)?[-\s]*days?\b`)
	interestRe = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*%\s*per\s*month`)
)

// RegexExtractor splits contract text into typed clauses by scanning
// numbered section headings, then runs the risk flag rules over each
// section body. Extraction is deterministic: same text, same clauses,
// same IDs, same flags.
type RegexExtractor struct{}

// NewExtractor returns a ready-to-use clause extractor.
func NewExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Normalize puts raw contract text into the canonical form every later
// stage operates on: NFC unicode normalization and LF line endings.
// Clause spans index into this normalized text.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text)
}

// Extract parses the contract into clauses. Text with no recognizable
// sections yields a single general clause spanning the whole document,
// so every contract gets at least one clause. Empty text is an
// extraction failure.
func (e *RegexExtractor) Extract(text string) ([]contracts.Clause, error) {
	text = Normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil, fault.ErrExtractionFailure.WithMessage("contract text is empty")
	}

	var clauses []contracts.Clause
	seen := make(map[contracts.ClauseType]bool)

	headings := headingRe.FindAllStringSubmatchIndex(text, -1)
	for i, h := range headings {
		title := text[h[2]:h[3]]
		ct, ok := classifyHeading(title)
		if !ok || seen[ct] {
			continue
		}
		bodyEnd := len(text)
		if i+1 < len(headings) {
			bodyEnd = headings[i+1][0]
		}
		span, body := trimSpan(text, h[1], bodyEnd)
		if body == "" {
			continue
		}
		seen[ct] = true
		clauses = append(clauses, buildClause(ct, span, body))
	}

	if len(clauses) == 0 {
		span, body := trimSpan(text, 0, len(text))
		clauses = append(clauses, buildClause(contracts.ClauseGeneral, span, body))
	}
	return clauses, nil
}

func classifyHeading(title string) (contracts.ClauseType, bool) {
	for _, s := range sectionTypes {
		if s.title.MatchString(title) {
			return s.clause, true
		}
	}
	return "", false
}

// trimSpan narrows [start,end) to the non-whitespace core so the span
// indexes exactly the clause text.
func trimSpan(text string, start, end int) (contracts.Span, string) {
	body := text[start:end]
	lead := len(body) - len(strings.TrimLeft(body, " \t\n"))
	trail := len(body) - len(strings.TrimRight(body, " \t\n"))
	span := contracts.Span{Start: start + lead, End: end - trail}
	if span.Start >= span.End {
		return contracts.Span{Start: start, End: start}, ""
	}
	return span, text[span.Start:span.End]
}

func buildClause(ct contracts.ClauseType, span contracts.Span, body string) contracts.Clause {
	return contracts.Clause{
		ID:         "cl-" + string(ct),
		Type:       ct,
		Span:       span,
		Text:       body,
		RiskFlags:  detectFlags(ct, body),
		Attributes: parseAttributes(ct, body),
	}
}

func detectFlags(ct contracts.ClauseType, text string) []string {
	var flags []string
	for _, rule := range flagRules {
		if rule.scope != "" && ct != rule.scope && ct != contracts.ClauseGeneral {
			continue
		}
		if !rule.match.MatchString(text) {
			continue
		}
		if rule.exclude != nil && rule.exclude.MatchString(text) {
			continue
		}
		flags = append(flags, rule.flag)
	}
	return flags
}

// parseAttributes pulls structured facts out of clause text. Keys are
// stable strings consumed by routing policy and the API; values are
// decimal strings.
func parseAttributes(ct contracts.ClauseType, text string) map[string]string {
	attrs := make(map[string]string)
	switch ct {
	case contracts.ClauseLiability, contracts.ClauseIndemnification:
		if cap, ok := maxDollarCents(text); ok {
			attrs["cap_amount_cents"] = strconv.FormatInt(cap, 10)
		}
	case contracts.ClauseAutoRenewal:
		if days, ok := firstInt(noticeRe, text); ok {
			attrs["notice_days"] = strconv.FormatInt(days, 10)
		}
		if months, ok := durationMonths(text); ok {
			attrs["term_months"] = strconv.FormatInt(months, 10)
		}
	case contracts.ClauseTermination:
		if days, ok := firstInt(noticeRe, text); ok {
			attrs["notice_days"] = strconv.FormatInt(days, 10)
		}
	case contracts.ClauseNonCompete, contracts.ClauseConfidentiality:
		if months, ok := durationMonths(text); ok {
			attrs["duration_months"] = strconv.FormatInt(months, 10)
		}
	case contracts.ClausePayment:
		if m := interestRe.FindStringSubmatch(text); m != nil {
			attrs["monthly_interest_pct"] = m[1]
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func durationMonths(text string) (int64, bool) {
	if months, ok := firstInt(monthsRe, text); ok {
		return months, true
	}
	if years, ok := firstInt(yearsRe, text); ok {
		return years * 12, true
	}
	return 0, false
}

func firstInt(re *regexp.Regexp, text string) (int64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// maxDollarCents returns the largest dollar figure in the text, in
// cents.
func maxDollarCents(text string) (int64, bool) {
	var best int64
	found := false
	for _, m := range dollarRe.FindAllStringSubmatch(text, -1) {
		if c := parseCents(m[1]); c > best {
			best = c
		}
		found = true
	}
	return best, found
}

// parseCents converts "1,250,000.50" to cents. Malformed input parses
// to zero rather than failing extraction.
func parseCents(s string) int64 {
	s = strings.ReplaceAll(s, ",", "")
	dollars, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(dollars, 10, 64)
	if err != nil {
		return 0
	}
	total := n * 100
	if len(frac) == 2 {
		if c, err := strconv.ParseInt(frac, 10, 64); err == nil {
			total += c
		}
	}
	return total
}
