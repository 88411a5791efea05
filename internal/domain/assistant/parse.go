package assistant

import "strings"

var defaultNextSteps = []string{
	"Follow up with your healthcare provider",
	"Monitor symptoms and report any changes",
	"Maintain healthy lifestyle habits",
}

// emptyAnalysis is returned without calling the model when a patient has
// no records.
func emptyAnalysis() *Analysis {
	return &Analysis{
		Summary:        "No medical history available",
		Recommendation: "No medical records found for this patient. Consider scheduling a comprehensive health check-up with a healthcare provider to establish baseline health metrics.",
		NextSteps: []string{
			"Schedule initial consultation with primary care physician",
			"Discuss medical history and current health concerns",
			"Establish baseline health metrics",
		},
	}
}

type section int

const (
	sectionNone section = iota
	sectionSummary
	sectionRecommendation
	sectionSteps
)

func headingOf(lower string) section {
	switch {
	case strings.Contains(lower, "summary"), strings.Contains(lower, "status"):
		return sectionSummary
	case strings.Contains(lower, "recommendation"), strings.Contains(lower, "next steps"):
		return sectionRecommendation
	case strings.Contains(lower, "suggestions"), strings.Contains(lower, "lifestyle"):
		return sectionSteps
	}
	return sectionNone
}

func bulletText(line string) (string, bool) {
	for _, prefix := range []string{"-", "*", "•"} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return line, false
}

// parseAnalysis splits free model output into summary, recommendation and
// next steps. It is a best-effort heuristic; anything it cannot place
// falls back to sentence slicing and then to fixed defaults.
func parseAnalysis(text string) *Analysis {
	var summary, recommendation []string
	var steps []string
	current := sectionNone

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if s := headingOf(strings.ToLower(line)); s != sectionNone {
			current = s
			continue
		}
		item, bullet := bulletText(line)
		switch {
		case current == sectionSummary && !bullet:
			summary = append(summary, line)
		case current == sectionRecommendation && !bullet:
			recommendation = append(recommendation, line)
		case current == sectionSteps || bullet:
			if item != "" {
				steps = append(steps, item)
			}
		}
	}

	a := &Analysis{
		Summary:        strings.Join(summary, " "),
		Recommendation: strings.Join(recommendation, " "),
		NextSteps:      steps,
	}
	if a.Summary == "" && a.Recommendation == "" {
		a.Summary, a.Recommendation, a.NextSteps = splitSentences(text)
	}

	if a.Summary == "" {
		a.Summary = "Medical records reviewed."
	}
	if a.Recommendation == "" {
		a.Recommendation = truncate(text, 200)
	}
	if len(a.NextSteps) == 0 {
		a.NextSteps = append([]string(nil), defaultNextSteps...)
	}
	return a
}

func splitSentences(text string) (summary, recommendation string, steps []string) {
	var sentences []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return "", "", nil
	}
	summary = joinSentences(sentences[:min(2, len(sentences))])
	if len(sentences) > 2 {
		recommendation = joinSentences(sentences[2:min(5, len(sentences))])
	}
	if len(sentences) > 5 {
		steps = sentences[5:]
	}
	return summary, recommendation, steps
}

func joinSentences(s []string) string {
	return strings.Join(s, ". ") + "."
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
