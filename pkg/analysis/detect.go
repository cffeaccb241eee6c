package analysis

import (
	"regexp"
	"strings"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
)

// typeDetectWindow bounds how far into the document type detection
// looks. Titles and recitals identify the agreement; later sections
// routinely name other instruments ("the NDA attached as Exhibit B").
const typeDetectWindow = 600

// typePatterns is ordered most-specific first.
var typePatterns = []struct {
	ctype contracts.ContractType
	re    *regexp.Regexp
}{
	{contracts.TypeEmployment, regexp.MustCompile(`(?i)employment\s+(agreement|contract)|offer\s+letter`)},
	{contracts.TypeNDA, regexp.MustCompile(`(?i)non[- ]?disclosure\s+agreement|\bNDA\b|confidentiality\s+agreement`)},
	{contracts.TypeLicensing, regexp.MustCompile(`(?i)licen[sc]ing\s+agreement|licen[sc]e\s+agreement|licen[sc]e\s+grant`)},
	{contracts.TypeLease, regexp.MustCompile(`(?i)lease\s+agreement|\blandlord\b|\btenant\b`)},
	{contracts.TypePurchase, regexp.MustCompile(`(?i)purchase\s+agreement|purchase\s+order|bill\s+of\s+sale`)},
	{contracts.TypeService, regexp.MustCompile(`(?i)master\s+services?\s+agreement|\bMSA\b|services?\s+agreement|\bsaas\b|software[- ]as[- ]a[- ]service|subscription\s+agreement|consulting\s+agreement|independent\s+contractor|statement\s+of\s+work|vendor\s+agreement`)},
}

// valuePatterns find an explicitly stated contract value. Ordered:
// a declared total beats a per-period figure which beats any stray
// dollar amount.
var valuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)total\s+(?:contract\s+)?value[^$\n]*\$([0-9][0-9,]*(?:\.[0-9]{2})?)`),
	regexp.MustCompile(`(?i)total\s+compensation[^$\n]*\$([0-9][0-9,]*(?:\.[0-9]{2})?)`),
	regexp.MustCompile(`(?i)\$([0-9][0-9,]*(?:\.[0-9]{2})?)\s*(?:annually|per\s+year|per\s+annum)`),
}

// DetectType classifies the contract from its opening text. Unmatched
// documents are general.
func DetectType(text string) contracts.ContractType {
	head := text
	if len(head) > typeDetectWindow {
		head = head[:typeDetectWindow]
	}
	for _, p := range typePatterns {
		if p.re.MatchString(head) {
			return p.ctype
		}
	}
	return contracts.TypeGeneral
}

// DetectValueCents finds the stated contract value in cents, or zero
// when the document names no figure. Falls back to the largest dollar
// amount anywhere in the text.
func DetectValueCents(text string) int64 {
	for _, re := range valuePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return parseCents(m[1])
		}
	}
	if v, ok := maxDollarCents(text); ok {
		return v
	}
	return 0
}

// DetectTitle returns the first non-blank line, whitespace-collapsed
// and capped, as a display title for untitled submissions.
func DetectTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		title := strings.Join(strings.Fields(line), " ")
		if title == "" {
			continue
		}
		if r := []rune(title); len(r) > 120 {
			title = string(r[:120])
		}
		return title
	}
	return ""
}
