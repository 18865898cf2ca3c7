// Package postprocess strips common LLM artifacts from translated
// block text before it is stored in the catalog or the reference pool.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean normalizes raw LLM output in three phases and returns the
// trimmed result: reasoning-block removal, instruction-echo removal,
// and outer-quote unwrapping.
func Clean(text string) string {
	text = stripReasoningBlocks(text)
	text = stripInstructionEchoes(text)
	text = stripQuoteWrapping(text)
	return strings.TrimSpace(text)
}

// reasoningBlockRe matches complete <think>…</think> style blocks. Each
// tag variant is listed explicitly because Go's RE2 engine does not
// support backreferences.
var reasoningBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// openReasoningRe matches a reasoning tag whose closing tag never
// arrived (the model was cut off mid-thought).
var openReasoningRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func stripReasoningBlocks(text string) string {
	text = reasoningBlockRe.ReplaceAllString(text, "")
	text = openReasoningRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// echoPatterns match introductory phrases that models sometimes prepend
// even when instructed not to. Anchored to the start of the output and
// requiring a colon to avoid eating legitimate content.
var echoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:refined |polished |translated )?(?:translation|text|markdown)\s*:`),
	regexp.MustCompile(`(?i)^(?:the )?(?:refined |polished )?(?:translation|translated text|translated markdown)\s*:`),
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:refined |polished |translated )?(?:translation|text)\s*:`),
}

func stripInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// stripQuoteWrapping removes a matching pair of outer quotes when the
// whole output is wrapped in them. Markdown blocks never legitimately
// start and end with the same quote character, so this is safe for
// every block kind the pipeline translates.
func stripQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
