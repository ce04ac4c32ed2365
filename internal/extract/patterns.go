package extract

import (
	"regexp"
	"strings"

	"github.com/rewired-gh/tenderarb/internal/models"
)

const (
	numExpr     = `([0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]+)?|[0-9]+(?:\.[0-9]+)?)`
	amountExpr  = `(?:\$\s*` + numExpr + `|` + numExpr + `\s*dollars)`
	perShare    = `\s+per\s+(?:common\s+)?share`
	monthExpr   = `\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?`
	dateExpr    = `((?:` + monthExpr + `\s+[0-9]{1,2},?\s+[0-9]{4})|(?:[0-9]{4}-[0-9]{2}-[0-9]{2}))`
	minShares   = 1000
	maxExcerpt  = 200
	maxClauses  = 5
	clauseFloor = 10
)

func parseAmountGroups(groups []string) (float64, bool) {
	return ParseAmount(firstNonEmpty(groups[1:]...))
}

func parseRangeGroups(groups []string) (models.PriceRange, bool) {
	a, ok := ParseAmount(firstNonEmpty(groups[1], groups[2]))
	if !ok {
		return models.PriceRange{}, false
	}
	b, ok := ParseAmount(firstNonEmpty(groups[3], groups[4]))
	if !ok {
		return models.PriceRange{}, false
	}
	if a > b {
		a, b = b, a
	}
	if a == b {
		return models.PriceRange{}, false
	}
	return models.PriceRange{Low: a, High: b}, true
}

func parseDateGroups(groups []string) (models.Date, bool) {
	return ParseDate(groups[1])
}

func parseShareGroups(groups []string) (int64, bool) {
	n, ok := parseShareCount(groups[1], groups[2])
	if !ok || n < minShares {
		return 0, false
	}
	return n, true
}

func always(groups []string) (bool, bool) { return true, true }

func never(groups []string) (bool, bool) { return false, true }

var priceMatchers = []Matcher[float64]{
	patternMatcher[float64]{
		name:       "offer-price-clause",
		re:         regexp.MustCompile(`(?i)\b(?:offer|purchase|tender)\s+price\s+(?:of|is|equal\s+to|will\s+be)\s+` + amountExpr),
		confidence: models.ConfidenceHigh,
		parse:      parseAmountGroups,
	},
	patternMatcher[float64]{
		name:       "per-share-in-cash",
		re:         regexp.MustCompile(`(?i)` + amountExpr + perShare + `,?\s+(?:net\s+to\s+the\s+(?:seller|holder)\s+)?in\s+cash`),
		confidence: models.ConfidenceHigh,
		parse:      parseAmountGroups,
	},
	patternMatcher[float64]{
		name:       "per-share",
		re:         regexp.MustCompile(`(?i)` + amountExpr + perShare),
		confidence: models.ConfidenceMedium,
		parse:      parseAmountGroups,
	},
	proximityMatcher[float64]{
		name:        "nearest-amount-to-per-share",
		anchor:      regexp.MustCompile(`(?i)per\s+share|for\s+each\s+share`),
		value:       regexp.MustCompile(`\$\s*` + numExpr),
		maxDistance: 120,
		confidence:  models.ConfidenceLow,
		parse:       func(g []string) (float64, bool) { return ParseAmount(g[1]) },
	},
}

var rangeMatchers = []Matcher[models.PriceRange]{
	patternMatcher[models.PriceRange]{
		name:       "price-range-of",
		re:         regexp.MustCompile(`(?i)price\s+range\s+of\s+` + amountExpr + `\s+to\s+` + amountExpr),
		confidence: models.ConfidenceHigh,
		parse:      parseRangeGroups,
	},
	patternMatcher[models.PriceRange]{
		name: "not-greater-nor-less",
		re: regexp.MustCompile(`(?i)not\s+(?:greater|more)\s+than\s+` + amountExpr +
			`(?:` + perShare + `)?,?\s+(?:nor|and\s+not)\s+less\s+than\s+` + amountExpr),
		confidence: models.ConfidenceHigh,
		parse:      parseRangeGroups,
	},
	patternMatcher[models.PriceRange]{
		name: "offer-prices-between",
		re: regexp.MustCompile(`(?i)\b(?:offer|purchase|tender)\w*[^.;$]{0,120}?\bprices?\s+(?:of\s+)?(?:between|from)\s+` +
			amountExpr + `\s+(?:and|to)\s+` + amountExpr),
		confidence: models.ConfidenceMedium,
		parse:      parseRangeGroups,
	},
}

var expiryMatchers = []Matcher[models.Date]{
	patternMatcher[models.Date]{
		name:       "expire-at-time-on",
		re:         regexp.MustCompile(`(?i)\bexpire\s+at\s+[^;]{0,120}?` + dateExpr),
		confidence: models.ConfidenceHigh,
		parse:      parseDateGroups,
	},
	patternMatcher[models.Date]{
		name:       "expire-on",
		re:         regexp.MustCompile(`(?i)\bexpire\s+on\s+` + dateExpr),
		confidence: models.ConfidenceHigh,
		parse:      parseDateGroups,
	},
	patternMatcher[models.Date]{
		name:       "expiration-date-is",
		re:         regexp.MustCompile(`(?i)\bexpiration\s+date"?\s+(?:is|means|will\s+be)\s+[^;]{0,80}?` + dateExpr),
		confidence: models.ConfidenceHigh,
		parse:      parseDateGroups,
	},
	patternMatcher[models.Date]{
		name:       "expiry-mention",
		re:         regexp.MustCompile(`(?i)\b(?:expir\w*|deadline)[^;]{0,160}?` + dateExpr),
		confidence: models.ConfidenceMedium,
		parse:      parseDateGroups,
	},
	proximityMatcher[models.Date]{
		name:        "nearest-date-to-expiry",
		anchor:      regexp.MustCompile(`(?i)expir\w*|deadline|withdrawal\s+rights`),
		value:       regexp.MustCompile(`(?i)` + dateExpr),
		maxDistance: 400,
		confidence:  models.ConfidenceLow,
		parse:       parseDateGroups,
	},
}

var sharesMatchers = []Matcher[int64]{
	patternMatcher[int64]{
		name:       "up-to-shares",
		re:         regexp.MustCompile(`(?i)\bup\s+to\s+([0-9][0-9,]*(?:\.[0-9]+)?)\s*(million)?\s+(?:of\s+(?:its|our|the\s+company's)\s+)?(?:outstanding\s+)?shares`),
		confidence: models.ConfidenceHigh,
		parse:      parseShareGroups,
	},
	patternMatcher[int64]{
		name:       "shares-of-common-stock",
		re:         regexp.MustCompile(`(?i)\b([0-9]{1,3}(?:,[0-9]{3})+|[0-9]+(?:\.[0-9]+)?)\s*(million)?\s+shares\s+of\s+(?:its\s+|our\s+|the\s+company's\s+)?(?:outstanding\s+)?common\s+stock`),
		confidence: models.ConfidenceMedium,
		parse:      parseShareGroups,
	},
}

var oddLotMention = regexp.MustCompile(`(?i)\bodd[\s-]*lots?\b`)

var oddLotMatchers = []Matcher[bool]{
	patternMatcher[bool]{
		name: "odd-lot-negated",
		re: regexp.MustCompile(`(?i)\b(?:(?:does|will)\s+not\s+(?:provide\s+for|offer|give|grant)\s+(?:any\s+)?(?:preference\s+to\s+|priority\s+to\s+)?` +
			`odd[\s-]*lots?|no\s+odd[\s-]*lot\s+(?:priority|preference)|odd[\s-]*lot\s+(?:priority|preference)\s+(?:will|does)\s+not\s+apply)`),
		confidence: models.ConfidenceHigh,
		parse:      never,
	},
	patternMatcher[bool]{
		name:       "odd-lot-priority",
		re:         regexp.MustCompile(`(?i)\bodd[\s-]*lot\s+(?:priority|preference|holders?|owners?|tenders?|provisions?)`),
		confidence: models.ConfidenceHigh,
		parse:      always,
	},
	patternMatcher[bool]{
		name:       "fewer-than-100-shares",
		re:         regexp.MustCompile(`(?i)\b(?:fewer|less)\s+than\s+100\s+shares`),
		confidence: models.ConfidenceMedium,
		parse:      always,
	},
	patternMatcher[bool]{
		name:       "odd-lot-mention",
		re:         oddLotMention,
		confidence: models.ConfidenceLow,
		parse:      always,
	},
}

var prorationMatchers = []Matcher[bool]{
	patternMatcher[bool]{
		name:       "proration",
		re:         regexp.MustCompile(`(?i)\bpro[\s-]*rat(?:a|ion|ed)\b`),
		confidence: models.ConfidenceHigh,
		parse:      always,
	},
}

var totalValueMatchers = []Matcher[float64]{
	patternMatcher[float64]{
		name:       "aggregate-value",
		re:         regexp.MustCompile(`(?i)\b(?:up\s+to|aggregate\s+(?:purchase\s+price\s+)?of)\s+\$\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*(million|billion)`),
		confidence: models.ConfidenceHigh,
		parse: func(g []string) (float64, bool) {
			v, ok := ParseAmount(g[1])
			return scaleAmount(v, g[2]), ok
		},
	},
}

var tickerMatchers = []Matcher[string]{
	patternMatcher[string]{
		name:       "exchange-ticker",
		re:         regexp.MustCompile(`\((?i:nyse(?:\s+american)?|nasdaq(?:\s+[a-z]+){0,2}|amex|cboe)\s*:\s*([A-Z][A-Z.]{0,5})\)`),
		confidence: models.ConfidenceMedium,
		parse:      func(g []string) (string, bool) { return g[1], true },
	},
}

func constant[T any](v T) func([]string) (T, bool) {
	return func([]string) (T, bool) { return v, true }
}

var offerTypeMatchers = []Matcher[models.OfferType]{
	patternMatcher[models.OfferType]{
		name:       "modified-dutch-auction",
		re:         regexp.MustCompile(`(?i)\bmodified\s+["']?dutch\s+auction`),
		confidence: models.ConfidenceMedium,
		parse:      constant(models.OfferIssuerDutch),
	},
	patternMatcher[models.OfferType]{
		name:       "issuer-tender-offer",
		re:         regexp.MustCompile(`(?i)\b(?:issuer\s+tender\s+offer|repurchase\s+(?:up\s+to\s+)?[^.;]{0,60}?\bits\s+(?:own\s+)?(?:common\s+stock|shares))`),
		confidence: models.ConfidenceMedium,
		parse:      constant(models.OfferIssuerFixed),
	},
	patternMatcher[models.OfferType]{
		name:       "third-party-acquisition",
		re:         regexp.MustCompile(`(?i)\b(?:merger\s+sub|to\s+purchase\s+all\s+(?:of\s+the\s+)?(?:issued\s+and\s+)?outstanding\s+shares)`),
		confidence: models.ConfidenceMedium,
		parse:      constant(models.OfferThirdParty),
	},
}

var conditionClause = regexp.MustCompile(`(?i)\b(?:conditioned\s+(?:up)?on|subject\s+to|contingent\s+upon)\s[^.;]{10,240}`)

// offerTypeFromHint maps an SEC form type to the offer type it implies.
func offerTypeFromHint(filingType string) (models.OfferType, bool) {
	ft := strings.ToUpper(strings.Join(strings.Fields(filingType), " "))
	switch {
	case strings.HasPrefix(ft, "SC TO-I"), strings.HasPrefix(ft, "SC 13E4"):
		return models.OfferIssuerFixed, true
	case strings.HasPrefix(ft, "SC TO-T"), strings.HasPrefix(ft, "SC 14D1"):
		return models.OfferThirdParty, true
	}
	return "", false
}

// conditions returns up to maxClauses distinct offer-condition clauses.
func conditions(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range conditionClause.FindAllString(text, -1) {
		clause := strings.TrimSpace(m)
		key := strings.ToLower(clause)
		if len(clause) < clauseFloor || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, clause)
		if len(out) == maxClauses {
			break
		}
	}
	return out
}

// oddLotExcerpt returns the text around the first odd-lot mention.
func oddLotExcerpt(text string) string {
	loc := oddLotMention.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	start, end := loc[0]-maxExcerpt, loc[1]+maxExcerpt
	prefix, suffix := "...", "..."
	if start <= 0 {
		start, prefix = 0, ""
	}
	if end >= len(text) {
		end, suffix = len(text), ""
	}
	for start > 0 && !isRuneStart(text[start]) {
		start--
	}
	for end < len(text) && !isRuneStart(text[end]) {
		end++
	}
	return prefix + strings.TrimSpace(text[start:end]) + suffix
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
