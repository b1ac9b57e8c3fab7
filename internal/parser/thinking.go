package parser

import (
	"regexp"
	"strings"
)

var reasoningTags = []string{"think", "thinking", "reasoning"}

var (
	closedBlocks []*regexp.Regexp
	strayTags    = regexp.MustCompile(`(?i)</?(?:think|thinking|reasoning)>`)
)

func init() {
	for _, tag := range reasoningTags {
		closedBlocks = append(closedBlocks, regexp.MustCompile(`(?is)<`+tag+`>.*?</`+tag+`>`))
	}
}

// StripThinking removes chain-of-thought wrappers that reasoning models put in
// front of their answer. Some vendors swallow the opening tag as part of the chat
// template, so an orphan closing tag means everything before it is reasoning.
func StripThinking(text string) string {
	for _, re := range closedBlocks {
		text = re.ReplaceAllString(text, "")
	}

	lower := strings.ToLower(text)
	cut := -1
	for _, tag := range reasoningTags {
		closing := "</" + tag + ">"
		if i := strings.LastIndex(lower, closing); i >= 0 && i+len(closing) > cut {
			cut = i + len(closing)
		}
	}
	if cut >= 0 {
		text = text[cut:]
	}

	return strayTags.ReplaceAllString(text, "")
}
