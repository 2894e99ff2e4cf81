// Package ingest implements the Ingestor (C5): markdown cleaning and chunking, followed
// by per-page normalize → filter → batch-embed → store.
package ingest

import (
	"strings"
)

// feedbackFooterMarkers is the closed list of feedback-footer lines that end content.
var feedbackFooterMarkers = []string{
	"Did you find this page useful",
	"Thanks for rating this page",
	"Report a problem on this page",
}

// CleanMarkdown slices from the first "# "-prefixed line forward (dropping navigation)
// and up to (not including) the first feedback-footer marker (§4.5, step 1).
func CleanMarkdown(text string) string {
	lines := strings.Split(text, "\n")

	start := 0
	for i, line := range lines {
		if strings.HasPrefix(line, "# ") {
			start = i
			break
		}
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		if containsAnyMarker(lines[i]) {
			end = i
			break
		}
	}

	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

func containsAnyMarker(line string) bool {
	for _, marker := range feedbackFooterMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

const defaultMaxChars = 4000

// SplitMarkdown chunks cleaned markdown on "## " section boundaries, further splitting
// any oversized section on blank-line paragraph boundaries, and any still-oversized
// paragraph at hard max_chars offsets (§4.5, step 2). Empty chunks are dropped.
func SplitMarkdown(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var sections []string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "## ") && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = []string{line}
		} else {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}

	var chunks []string
	for _, section := range sections {
		if len(section) <= maxChars {
			chunks = append(chunks, section)
			continue
		}
		chunks = append(chunks, splitOversizedSection(section, maxChars)...)
	}

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitOversizedSection(section string, maxChars int) []string {
	paragraphs := strings.Split(section, "\n\n")
	var chunks []string
	current := ""

	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, para := range paragraphs {
		if len(current)+len(para)+2 > maxChars {
			flush()
			if len(para) > maxChars {
				for i := 0; i < len(para); i += maxChars {
					end := i + maxChars
					if end > len(para) {
						end = len(para)
					}
					chunks = append(chunks, para[i:end])
				}
				continue
			}
			current = para
			continue
		}
		if current == "" {
			current = para
		} else {
			current = current + "\n\n" + para
		}
	}
	flush()
	return chunks
}
