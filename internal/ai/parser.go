package ai

import (
	"strings"
	"unicode/utf8"
)

// DualContent is a response split into its on-asset text and caption
type DualContent struct {
	VisualText string `json:"visual_text"`
	Caption    string `json:"caption"`
}

var (
	visualHeaders  = []string{"visual text:", "on-screen text:", "asset text:"}
	captionHeaders = []string{"caption:", "description:", "post caption:"}
)

// maxUnlabelledVisual is the length under which an unlabelled first line is taken as visual text
const maxUnlabelledVisual = 100

type section int

const (
	sectionNone section = iota
	sectionVisual
	sectionCaption
)

// ParseDualContent splits model output into visual text and caption.
// Header lines switch sections and are dropped; visual headers win when
// a line matches both. Before any header the first short line becomes
// the visual text and everything else goes to the caption.
func ParseDualContent(text string) DualContent {
	var visual, caption []string
	current := sectionNone

	for _, raw := range strings.Split(strings.TrimSpace(text), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case containsAny(lower, visualHeaders):
			current = sectionVisual
			continue
		case containsAny(lower, captionHeaders):
			current = sectionCaption
			continue
		}

		switch current {
		case sectionVisual:
			visual = append(visual, line)
		case sectionCaption:
			caption = append(caption, line)
		default:
			if len(visual) == 0 && utf8.RuneCountInString(line) < maxUnlabelledVisual {
				visual = []string{line}
			} else {
				caption = append(caption, line)
			}
		}
	}

	return DualContent{
		VisualText: strings.TrimSpace(strings.Join(visual, " ")),
		Caption:    strings.TrimSpace(strings.Join(caption, " ")),
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
