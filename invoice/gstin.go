package invoice

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
)

type partyRole int

const (
	roleUnknown partyRole = iota
	roleSeller
	roleBuyer
)

// gstinOccurrence is a canonical GSTIN found at a byte offset of the text.
type gstinOccurrence struct {
	value string
	start int
	end   int
	role  partyRole
}

var (
	gstinLabel = regexp.MustCompile(`(?i)GSTIN(?:\s*/\s*UIN)?\s*(?:No\.?)?\s*[:\-]?\s*([0-9A-Za-z][0-9A-Za-z .\-]{13,24})`)
	gstinBare  = regexp.MustCompile(`\b[0-9OISLZ]{2}[A-Z]{5}[0-9OISLZ]{4}[A-Z0-9]{3}\b`)

	buyerKeywords  = regexp.MustCompile(`(?i)\b(?:Buyer|Bill(?:ed)?\s*To|Consignee|Ship(?:ped)?\s*To|Recipient)\b`)
	sellerKeywords = regexp.MustCompile(`(?i)\b(?:Company|Vendor|Seller|Supplier|From)\b`)
)

// findGSTINs locates every GSTIN in text, labeled values first merged
// with bare tokens, ordered by position. Labeled values may carry OCR
// separators inside the identifier.
func findGSTINs(text string) []gstinOccurrence {
	var out []gstinOccurrence

	for _, loc := range gstinLabel.FindAllStringSubmatchIndex(text, -1) {
		raw := text[loc[2]:loc[3]]
		compact := compactAlnum(raw, 15)
		if v, ok := CanonicalGSTIN(compact); ok {
			end := loc[2] + alnumSpan(raw, 15)
			out = append(out, gstinOccurrence{value: v, start: loc[2], end: end})
		}
	}

	for _, loc := range gstinBare.FindAllStringIndex(text, -1) {
		if covered(out, loc[0]) {
			continue
		}
		if v, ok := CanonicalGSTIN(text[loc[0]:loc[1]]); ok {
			out = append(out, gstinOccurrence{value: v, start: loc[0], end: loc[1]})
		}
	}

	slices.SortStableFunc(out, func(a, b gstinOccurrence) int {
		return cmp.Compare(a.start, b.start)
	})
	return out
}

// classifyGSTIN assigns seller or buyer by the nearest keyword preceding
// the occurrence within the window, else the nearest following one.
func classifyGSTIN(text string, occ gstinOccurrence, width int) partyRole {
	before := windowBefore(text, occ.start, width)
	buyer := lastIndex(buyerKeywords, before)
	seller := lastIndex(sellerKeywords, before)
	switch {
	case buyer > seller:
		return roleBuyer
	case seller > buyer:
		return roleSeller
	}

	after := window(text, occ.end, width)
	buyer = firstIndex(buyerKeywords, after)
	seller = firstIndex(sellerKeywords, after)
	switch {
	case buyer >= 0 && (seller < 0 || buyer < seller):
		return roleBuyer
	case seller >= 0:
		return roleSeller
	}
	return roleUnknown
}

// resolveParties picks the seller and buyer GSTINs. The first
// seller-labelled occurrence wins, else the first unlabeled one, else the
// first occurrence of any role. The buyer is the first buyer-labelled
// occurrence distinct from the seller, else the next distinct unlabeled
// one.
func resolveParties(text string, width int) (seller, buyer gstinOccurrence, sellerLabeled, buyerLabeled bool) {
	occs := findGSTINs(text)
	for i := range occs {
		occs[i].role = classifyGSTIN(text, occs[i], width)
	}

	for _, o := range occs {
		if o.role == roleSeller {
			seller, sellerLabeled = o, true
			break
		}
	}
	if seller.value == "" {
		for _, o := range occs {
			if o.role == roleUnknown {
				seller = o
				break
			}
		}
	}
	if seller.value == "" && len(occs) > 0 {
		seller = occs[0]
	}

	for _, o := range occs {
		if o.role == roleBuyer && o.value != seller.value {
			buyer, buyerLabeled = o, true
			break
		}
	}
	if buyer.value == "" {
		for _, o := range occs {
			if o.role == roleUnknown && o.value != seller.value && o.start != seller.start {
				buyer = o
				break
			}
		}
	}
	return seller, buyer, sellerLabeled, buyerLabeled
}

func compactAlnum(s string, n int) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() == n {
			break
		}
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// alnumSpan is the byte length of s covering its first n alphanumerics.
func alnumSpan(s string, n int) int {
	count := 0
	for i, r := range s {
		if isAlnum(r) {
			count++
			if count == n {
				return i + 1
			}
		}
	}
	return len(s)
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func covered(occs []gstinOccurrence, pos int) bool {
	for _, o := range occs {
		if pos >= o.start && pos < o.end {
			return true
		}
	}
	return false
}

func lastIndex(re *regexp.Regexp, s string) int {
	locs := re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][0]
}

func firstIndex(re *regexp.Regexp, s string) int {
	if loc := re.FindStringIndex(s); loc != nil {
		return loc[0]
	}
	return -1
}
