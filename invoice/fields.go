package invoice

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// strategy yields candidate raw values for a field from one text surface,
// in the order they should be tried.
type strategy struct {
	source     Source
	headerOnly bool
	find       func(text string) []string
}

// fieldRule is the ordered strategy list for a single field.
type fieldRule struct {
	field      Field
	normalize  func(string) (string, bool)
	strategies []strategy
}

const (
	surfaceHeader = iota
	surfaceFull
)

// resolve returns the highest-ranked candidate that passes the field's
// normalizer. Upstream guesses rank first. Labeled patterns are tried on
// the header surface then the full text before any layout fallback runs.
func (r fieldRule) resolve(guesses FieldGuesses, surfaces [2]string) (FieldGuess, bool) {
	if raw, ok := guesses[r.field]; ok {
		if v, ok := r.normalize(raw); ok {
			return FieldGuess{Value: v, Source: SourceUpstream, Rank: 0}, true
		}
	}

	n := len(r.strategies)
	for phase, source := range []Source{SourcePattern, SourceLayout} {
		for si, text := range surfaces {
			if text == "" {
				continue
			}
			for i, s := range r.strategies {
				if s.source != source || (s.headerOnly && si != surfaceHeader) {
					continue
				}
				for _, raw := range s.find(text) {
					if v, ok := r.normalize(raw); ok {
						return FieldGuess{
							Value:  v,
							Source: s.source,
							Rank:   1 + phase*2*n + si*n + i,
						}, true
					}
				}
			}
		}
	}
	return FieldGuess{}, false
}

var (
	invoiceNumberLabel = regexp.MustCompile(`(?i)Invoice\s*(?:No\.?|Number|#|Ref\.?|ID)`)
	referenceToken     = regexp.MustCompile(`[A-Za-z0-9/\-._]{3,80}`)
	positionedJunk     = regexp.MustCompile(`(?i)sition|osition|itioned|positioned`)
	dateOnlyToken      = regexp.MustCompile(`^(?:\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2})$`)
	digitRegexp        = regexp.MustCompile(`\d`)

	anchorTag      = regexp.MustCompile(`(?is)<a[^>]*>.*?</a>`)
	htmlTag        = regexp.MustCompile(`<[^>]+>`)
	boilerplate    = regexp.MustCompile(`(?i)\b(?:TAX\s*INVOICE|INVOICE|GSTIN|IRN|ACK|TOTAL|AMOUNT)\b`)
	partyPrefix    = regexp.MustCompile(`(?i)^(?:To|Bill\s*To|Ship\s*To|Name)\b\s*[:\-]?\s*`)
	headerNoise    = regexp.MustCompile(`(?i)\b(?:INVOICE|TOTAL|DATE)\b`)
	companyMarker  = regexp.MustCompile(`(?i)\b(?:LTD|LIMITED|PVT|PRIVATE|LLP|TRADERS|ENTERPRISES?|INDUSTRIES|INDUSTRIAL|SERVICES|ELECTRICALS?|INFRA|CORPORATION|CO\.)`)
	buyerLabelLine = regexp.MustCompile(`(?i)^(?:Buyer|Bill(?:ed)?\s*To|Consignee|Ship(?:ped)?\s*To)\b(?:\s*\([^)]*\))?\s*[:\-]?\s*(.*)$`)
	partyDetail    = regexp.MustCompile(`(?i)GSTIN|\bGST\b|ADDRESS|\bSTATE\b|\bPIN\b|PHONE|MOBILE|E-?MAIL|CONTACT`)

	irnValue    = regexp.MustCompile(`[a-f0-9]{64}(?:-[a-f0-9]{32})?`)
	subTotalEnd = regexp.MustCompile(`(?i)sub\s*-?\s*$`)
	totalLine   = regexp.MustCompile(`(?i)\b(?:Grand\s*Total|Total\s*Amount|Amount\s*Payable|Amount\s*Due|Net\s*Payable|Total)\b`)
)

// labeled returns a pattern strategy yielding capture group 1 of every
// match of expr.
func labeled(expr string) strategy {
	re := regexp.MustCompile(expr)
	return strategy{
		source: SourcePattern,
		find: func(text string) []string {
			var out []string
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				out = append(out, m[1])
			}
			return out
		},
	}
}

// labeledLast is labeled with the matches tried last-first. Summary rows
// follow line rows on an invoice, so the last labeled amount is the
// document-level one.
func labeledLast(expr string) strategy {
	s := labeled(expr)
	find := s.find
	s.find = func(text string) []string {
		out := find(text)
		slices.Reverse(out)
		return out
	}
	return s
}

// labeledTotal is labeled with matches preceded by "Sub" discarded.
func labeledTotal(expr string) strategy {
	re := regexp.MustCompile(expr)
	return strategy{
		source: SourcePattern,
		find: func(text string) []string {
			var out []string
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				if subTotalEnd.MatchString(windowBefore(text, loc[0], 6)) {
					continue
				}
				out = append(out, text[loc[2]:loc[3]])
			}
			return out
		},
	}
}

func layout(find func(string) []string) strategy {
	return strategy{source: SourceLayout, find: find}
}

func headerLayout(find func(string) []string) strategy {
	return strategy{source: SourceLayout, headerOnly: true, find: find}
}

var fieldRules = []fieldRule{
	{
		field:     FieldInvoiceNumber,
		normalize: normalizeReference,
		strategies: []strategy{
			labeled(`(?i)Invoice\s*(?:No\.?|Number|#|Ref\.?|ID)\s*[:\-]?\s*([A-Za-z0-9/\-._]+)`),
			layout(valueOnLineAfter(invoiceNumberLabel)),
		},
	},
	{
		field:     FieldInvoiceDate,
		normalize: NormalizeDate,
		strategies: []strategy{
			labeled(`(?i)Invoice\s*Date\s*[:\-]?\s*` + datePattern),
			labeled(`(?i)\bDated?\b\s*[:\-]?\s*` + datePattern),
			layout(allMatches(regexp.MustCompile(datePattern))),
		},
	},
	{
		field:     FieldVendorName,
		normalize: cleanPartyName,
		strategies: []strategy{
			labeled(`(?im)^\s*(?:Vendor|Seller|Supplier|Sold\s*By|From)(?:\s*Name)?\s*[:\-]\s*(.+)$`),
			layout(companyLines),
			headerLayout(plausibleHeaderLines),
		},
	},
	{
		field:     FieldBuyerName,
		normalize: cleanPartyName,
		strategies: []strategy{
			{source: SourcePattern, find: buyerBlockLines},
		},
	},
	{
		field:     FieldIRN,
		normalize: normalizeIRN,
		strategies: []strategy{
			labeled(`(?i)\b(?:IRN|Invoice\s+Ref(?:erence)?\s*No\.?)\s*(?:No\.?)?\s*[:\-]?\s*([A-Fa-f0-9][A-Fa-f0-9\s\-]{62,})`),
			layout(allMatches(regexp.MustCompile(`\b[A-Fa-f0-9]{64}(?:\s*-\s*[A-Fa-f0-9]{32})?\b`))),
		},
	},
	{
		field:     FieldPONumber,
		normalize: normalizeMiscRef,
		strategies: []strategy{
			labeled(`(?i)\b(?:PO|P\.O\.|Purchase\s*Order)\s*(?:No\.?|Number)?\s*[:\-]?\s*([A-Za-z0-9/\-_]{3,80})`),
		},
	},
	{
		field:     FieldBookingNumber,
		normalize: normalizeMiscRef,
		strategies: []strategy{
			labeled(`(?i)\bBooking\s*(?:No\.?|Number|ID)?\s*[:\-]?\s*([A-Za-z0-9/\-_]{3,80})`),
		},
	},
	{
		field:     FieldAckNumber,
		normalize: normalizeMiscRef,
		strategies: []strategy{
			labeled(`(?i)\bAck(?:nowledgement)?\s*(?:No\.?|Number)\s*[:\-]?\s*([A-Za-z0-9/\-_]{3,80})`),
			labeled(`(?i)\bAck(?:nowledgement)?\s*[:\-]\s*([A-Za-z0-9/\-_]{3,80})`),
		},
	},
	{
		field:     FieldAckDate,
		normalize: NormalizeDate,
		strategies: []strategy{
			labeled(`(?i)\bAck(?:nowledgement)?\.?\s*Date\s*[:\-]?\s*` + datePattern),
		},
	},
	{
		field:     FieldAmountInWords,
		normalize: normalizeWords,
		strategies: []strategy{
			labeled(`(?i)Amount\s+Chargeable\s*\(in\s+words\)\s*[:\-]?\s*([^\n]+)`),
			labeled(`(?i)\b((?:INR|Rupees)\b[^\n]{0,120}?\bOnly)\b`),
		},
	},
	{
		field:     FieldTotalAmount,
		normalize: normalizeAmountField,
		strategies: []strategy{
			labeled(`(?i)\bGrand\s*Total\b\s*[:\-]?\s*` + currencyMark + moneyPattern),
			labeled(`(?i)\b(?:Total\s*Amount|Invoice\s*Total|Total\s*Invoice\s*Value|Amount\s*Payable|Net\s*Payable|Amount\s*Due)\b\s*(?:\(\w+\))?\s*[:\-]?\s*` + currencyMark + moneyPattern),
			labeledTotal(`(?i)\bTotal\b\s*[:\-]?\s*` + currencyMark + moneyPattern),
			labeled(`(?i)\b(?:Grand\s*Total|Total\s*Amount|Invoice\s*Total|Amount\s*Payable|Net\s*Payable|Amount\s*Due)\b\s*[:\-]?\s*` + currencyMark + loosePattern),
			layout(lastMoneyOnTotalLine),
			layout(largestMoney),
		},
	},
	{
		field:     FieldTaxableAmount,
		normalize: normalizeAmountField,
		strategies: []strategy{
			labeledLast(`(?i)\b(?:Total\s*)?Taxable\s*(?:Value|Amount|Amt)\b\s*[:\-]?\s*` + currencyMark + moneyPattern),
		},
	},
	{
		field:      FieldCGSTPercentage,
		normalize:  normalizePercentField,
		strategies: []strategy{labeled(`(?i)\bCGST\b\s*(?:@\s*)?` + percentPattern)},
	},
	{
		field:      FieldSGSTPercentage,
		normalize:  normalizePercentField,
		strategies: []strategy{labeled(`(?i)\b(?:SGST|UTGST)\b\s*(?:@\s*)?` + percentPattern)},
	},
	{
		field:      FieldIGSTPercentage,
		normalize:  normalizePercentField,
		strategies: []strategy{labeled(`(?i)\bIGST\b\s*(?:@\s*)?` + percentPattern)},
	},
	{
		field:      FieldCGSTAmount,
		normalize:  normalizeAmountField,
		strategies: []strategy{labeledLast(componentAmountExpr(`CGST`))},
	},
	{
		field:      FieldSGSTAmount,
		normalize:  normalizeAmountField,
		strategies: []strategy{labeledLast(componentAmountExpr(`(?:SGST|UTGST)`))},
	},
	{
		field:      FieldIGSTAmount,
		normalize:  normalizeAmountField,
		strategies: []strategy{labeledLast(componentAmountExpr(`IGST`))},
	},
	{
		field:     FieldTotalTax,
		normalize: normalizeAmountField,
		strategies: []strategy{
			labeled(`(?i)\b(?:Total\s*Tax(?:\s*Amount)?|Total\s*GST|Tax\s*Amount)\b\s*[:\-]?\s*` + currencyMark + moneyPattern),
			labeled(`(?i)\bTax\s*Amt\.?\s*[:\-]?\s*` + currencyMark + moneyPattern),
		},
	},
}

func componentAmountExpr(label string) string {
	return `(?i)\b` + label + `\b\s*(?:@?\s*\d{1,2}(?:\.\d{1,2})?\s*%)?\s*[:\-]?\s*(?:Amt\.?|Amount)?\s*[:\-]?\s*` + currencyMark + moneyPattern
}

func allMatches(re *regexp.Regexp) func(string) []string {
	return func(text string) []string {
		return re.FindAllString(text, -1)
	}
}

// valueOnLineAfter yields the first reference-shaped token of the line
// following each line that carries label.
func valueOnLineAfter(label *regexp.Regexp) func(string) []string {
	return func(text string) []string {
		ls := lines(text)
		var out []string
		for i, l := range ls {
			if !label.MatchString(l) || i+1 >= len(ls) {
				continue
			}
			if tok := referenceToken.FindString(ls[i+1]); tok != "" {
				out = append(out, tok)
			}
		}
		return out
	}
}

func companyLines(text string) []string {
	var out []string
	for _, l := range lines(text) {
		if companyMarker.MatchString(l) {
			out = append(out, l)
		}
	}
	return out
}

func plausibleHeaderLines(text string) []string {
	var out []string
	for _, l := range lines(text) {
		if headerNoise.MatchString(l) || len(strings.Fields(l)) < 2 {
			continue
		}
		out = append(out, l)
	}
	return out
}

// buyerBlockLines yields the text following a buyer label on the same
// line, or failing that the first following line that is not an address,
// state or contact detail.
func buyerBlockLines(text string) []string {
	ls := lines(text)
	var out []string
	for i, l := range ls {
		m := buyerLabelLine.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		if rest := strings.TrimSpace(m[1]); rest != "" && !partyDetail.MatchString(rest) {
			out = append(out, rest)
			continue
		}
		for j := i + 1; j < min(i+6, len(ls)); j++ {
			if !partyDetail.MatchString(ls[j]) {
				out = append(out, ls[j])
				break
			}
		}
	}
	return out
}

func lastMoneyOnTotalLine(text string) []string {
	var out []string
	for _, l := range lines(text) {
		if !totalLine.MatchString(l) {
			continue
		}
		if ms := findMoney(l); len(ms) > 0 {
			out = append(out, ms[len(ms)-1].value.String())
		}
	}
	return out
}

func largestMoney(text string) []string {
	ms := findMoney(text)
	if len(ms) == 0 {
		return nil
	}
	best := ms[0].value
	for _, m := range ms[1:] {
		if m.value.GreaterThan(best) {
			best = m.value
		}
	}
	return []string{best.String()}
}

func normalizeReference(s string) (string, bool) {
	s = strings.Trim(strings.TrimSpace(s), ".-_/:")
	if utf8.RuneCountInString(s) < 2 || !digitRegexp.MatchString(s) {
		return "", false
	}
	if positionedJunk.MatchString(s) {
		return "", false
	}
	return s, true
}

func normalizeMiscRef(s string) (string, bool) {
	s, ok := normalizeReference(s)
	if !ok || utf8.RuneCountInString(s) < 3 || dateOnlyToken.MatchString(s) {
		return "", false
	}
	return s, true
}

func normalizeIRN(s string) (string, bool) {
	s = strings.ToLower(strings.Join(strings.Fields(s), ""))
	if m := irnValue.FindString(s); m != "" {
		return m, true
	}
	return "", false
}

func normalizeWords(s string) (string, bool) {
	s = collapseSpace(s)
	if utf8.RuneCountInString(s) < 3 || !hasLetterRegexp.MatchString(s) {
		return "", false
	}
	return s, true
}

func normalizeAmountField(s string) (string, bool) {
	d, ok := NormalizeAmount(s)
	if !ok || d.IsNegative() {
		return "", false
	}
	return d.String(), true
}

func normalizePercentField(s string) (string, bool) {
	d, ok := NormalizeAmount(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if !ok || d.IsNegative() || d.GreaterThan(hundred) {
		return "", false
	}
	return d.String(), true
}

// cleanPartyName rejects invoice boilerplate and strips markup and
// addressing prefixes from a vendor or buyer name candidate.
func cleanPartyName(s string) (string, bool) {
	s = anchorTag.ReplaceAllString(s, "")
	s = htmlTag.ReplaceAllString(s, "")
	s = collapseSpace(s)
	if boilerplate.MatchString(s) {
		return "", false
	}
	s = strings.Trim(partyPrefix.ReplaceAllString(s, ""), " ,:-")
	if utf8.RuneCountInString(s) < 3 || !hasLetterRegexp.MatchString(s) {
		return "", false
	}
	return s, true
}
