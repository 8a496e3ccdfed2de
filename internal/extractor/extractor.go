// Package extractor implements the default heuristic extraction strategy:
// regex-driven detection of product links, numbered lists, order numbers,
// and correction phrasings in conversation text. The matching rules are a
// contractual minimum for a constrained conversational-commerce vocabulary,
// not a general NLP system; the metadata store consumes whatever an
// Extractor produces and never parses text itself.
package extractor

import (
	"regexp"
	"strings"

	"github.com/tessary/coref/internal/metadata"
)

var (
	// markdownLinkRe matches [name](url) product links in assistant text.
	markdownLinkRe = regexp.MustCompile(`\[([^\[\]]+)\]\((https?://[^)\s]+)\)`)

	// priceRe matches a dollar amount like $49 or $1,299.99.
	priceRe = regexp.MustCompile(`\$\d+(?:,\d{3})*(?:\.\d{1,2})?`)

	// orderedItemRe matches one line of an ordered list: "1. name" or "2) name".
	orderedItemRe = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+)$`)

	// boldRe strips **emphasis** markers from item names.
	boldRe = regexp.MustCompile(`\*\*([^*]+)\*\*`)

	// orderNumberRe matches order references like "order #10234".
	orderNumberRe = regexp.MustCompile(`(?i)\border\s*#?\s*(\d[\dA-Za-z-]{2,})\b`)
)

// correctionPatterns are the supported correction phrasings, tried in
// order. Each pattern captures the corrected value first and the original
// second. Broader natural-language coverage is a non-contractual
// enhancement; these phrasings are the required minimum.
var correctionPatterns = []*regexp.Regexp{
	// "sorry, I meant ZF4 not ZF5" / "I meant ZF4, not ZF5"
	regexp.MustCompile(`(?i)\b(?:sorry,?\s+)?i\s+meant\s+(?:the\s+)?(.+?),?\s+not\s+(?:the\s+)?(.+?)[.!?]*\s*$`),
	// "I said ZF4 not ZF5"
	regexp.MustCompile(`(?i)\bi\s+said\s+(?:the\s+)?(.+?),?\s+not\s+(?:the\s+)?(.+?)[.!?]*\s*$`),
	// "it's ZF4, not ZF5"
	regexp.MustCompile(`(?i)\bit'?s\s+(?:the\s+)?(.+?),?\s+not\s+(?:the\s+)?(.+?)[.!?]*\s*$`),
}

// noMeantRe matches "no, I meant ZF4" with no explicit original. The
// original is left empty; the store pairs it with the most recently
// mentioned entity.
var noMeantRe = regexp.MustCompile(`(?i)^no,?\s+i\s+meant\s+(?:the\s+)?(.+?)[.!?]*\s*$`)

// bareNotRe matches a terse "ZF4 not ZF5" / "ZF4, not the ZF5" utterance.
// Both sides are length-capped and vetted so ordinary sentences containing
// "not" do not misfire.
var bareNotRe = regexp.MustCompile(`(?i)^(.{1,40}?),?\s+not\s+(?:the\s+)?(.{1,40}?)[.!?]*\s*$`)

// auxWords disqualify a bare "X not Y" candidate whose left side ends in an
// auxiliary ("I did not order that" is not a correction).
var auxWords = map[string]bool{
	"do": true, "does": true, "did": true,
	"is": true, "are": true, "was": true, "were": true, "am": true,
	"will": true, "would": true, "can": true, "could": true,
	"shall": true, "should": true, "may": true, "might": true, "must": true,
	"have": true, "has": true, "had": true,
}

// PatternExtractor is the default metadata.Extractor implementation.
type PatternExtractor struct{}

// New returns the default pattern extractor.
func New() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract parses one exchange of conversation text into tracking
// candidates. userText contributes corrections and order references;
// aiText contributes product links, order references, and numbered lists.
// Extraction never fails: text that matches nothing produces an empty
// result.
func (x *PatternExtractor) Extract(userText, aiText string) metadata.Extraction {
	var out metadata.Extraction

	out.Corrections = extractCorrections(userText)

	out.Entities = append(out.Entities, extractOrders(userText)...)
	out.Entities = append(out.Entities, extractOrders(aiText)...)

	lists := extractLists(aiText)
	out.Lists = lists

	// List items double as product entities so that "it" can later refer
	// to an item the assistant just presented.
	for _, list := range lists {
		for _, item := range list {
			out.Entities = append(out.Entities, metadata.Entity{
				Value:    item.Name,
				Kind:     metadata.KindProduct,
				Metadata: item.Metadata,
			})
		}
	}

	out.Entities = append(out.Entities, extractLinks(aiText, lists)...)

	return out
}

// extractCorrections finds correction phrasings in the user text. The
// first matching pattern wins per utterance.
func extractCorrections(text string) []metadata.CorrectionInput {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	for _, re := range correctionPatterns {
		m := re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		corrected := cleanValue(m[1])
		original := cleanValue(m[2])
		if corrected == "" || original == "" {
			continue
		}
		return []metadata.CorrectionInput{{
			Original:   original,
			Corrected:  corrected,
			SourceText: trimmed,
		}}
	}

	// "no, I meant ZF4": the original is whatever was most recently under
	// discussion, which only the store knows.
	if m := noMeantRe.FindStringSubmatch(trimmed); m != nil {
		if corrected := cleanValue(m[1]); corrected != "" {
			return []metadata.CorrectionInput{{
				Corrected:  corrected,
				SourceText: trimmed,
			}}
		}
	}

	if m := bareNotRe.FindStringSubmatch(trimmed); m != nil {
		corrected := cleanValue(m[1])
		original := cleanValue(m[2])
		if corrected != "" && original != "" && !endsInAux(corrected) {
			return []metadata.CorrectionInput{{
				Original:   original,
				Corrected:  corrected,
				SourceText: trimmed,
			}}
		}
	}

	return nil
}

// endsInAux reports whether the value's last word is an auxiliary verb.
func endsInAux(v string) bool {
	fields := strings.Fields(strings.ToLower(v))
	if len(fields) == 0 {
		return false
	}
	return auxWords[fields[len(fields)-1]]
}

// extractLists finds runs of consecutive numbered lines. A run needs at
// least two items to count as a list presentation.
func extractLists(text string) [][]metadata.ListItem {
	if text == "" {
		return nil
	}

	var lists [][]metadata.ListItem
	var current []metadata.ListItem

	flush := func() {
		if len(current) >= 2 {
			lists = append(lists, current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		m := orderedItemRe.FindStringSubmatch(line)
		if m == nil {
			if strings.TrimSpace(line) != "" {
				flush()
			}
			continue
		}

		name, meta := parseItemBody(m[2])
		if name == "" {
			continue
		}
		current = append(current, metadata.ListItem{
			Index:    len(current) + 1,
			Name:     name,
			Metadata: meta,
		})
	}
	flush()

	return lists
}

// parseItemBody extracts the display name and metadata from the body of a
// numbered-list line. A markdown link supplies both the name and the url;
// otherwise the visible text (minus emphasis markers and a trailing price)
// is the name. A price anywhere on the line becomes metadata.
func parseItemBody(body string) (string, map[string]string) {
	meta := map[string]string{}

	if price := priceRe.FindString(body); price != "" {
		meta[metadata.MetaPrice] = price
	}

	name := body
	if m := markdownLinkRe.FindStringSubmatch(body); m != nil {
		name = m[1]
		meta[metadata.MetaURL] = m[2]
	} else {
		name = priceRe.ReplaceAllString(name, "")
		name = boldRe.ReplaceAllString(name, "$1")
	}

	name = strings.Trim(strings.TrimSpace(name), "-–:,. ")
	if name == "" {
		return "", nil
	}
	if len(meta) == 0 {
		meta = nil
	}
	return name, meta
}

// extractLinks emits product entities for markdown links in the assistant
// text that are not already covered by a detected list, so standalone
// recommendations ("have a look at [ZF4](...)") are tracked too.
func extractLinks(text string, lists [][]metadata.ListItem) []metadata.Entity {
	matches := markdownLinkRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	inList := make(map[string]bool)
	for _, list := range lists {
		for _, item := range list {
			inList[metadata.NormalizeName(item.Name)] = true
		}
	}

	var entities []metadata.Entity
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" || inList[metadata.NormalizeName(name)] {
			continue
		}
		entities = append(entities, metadata.Entity{
			Value:    name,
			Kind:     metadata.KindProduct,
			Metadata: map[string]string{metadata.MetaURL: m[2]},
		})
	}
	return entities
}

// extractOrders emits order entities for references like "order #10234".
func extractOrders(text string) []metadata.Entity {
	matches := orderNumberRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var entities []metadata.Entity
	for _, m := range matches {
		entities = append(entities, metadata.Entity{
			Value: "Order #" + strings.ToUpper(m[1]),
			Kind:  metadata.KindOrder,
		})
	}
	return entities
}

// cleanValue strips quotes, emphasis markers, and trailing punctuation from
// a captured correction value.
func cleanValue(v string) string {
	v = boldRe.ReplaceAllString(v, "$1")
	v = strings.Trim(strings.TrimSpace(v), `"'.,!?`)
	return strings.TrimSpace(v)
}
