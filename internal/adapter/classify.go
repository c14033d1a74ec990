package adapter

import (
	"strings"

	"internwatch-engine/internal/domain"
)

// Keyword sets per job type, matched case-insensitively as substrings.
// Chinese career sites mix both languages freely.
var jobTypeKeywords = []struct {
	jobType  domain.JobType
	keywords []string
}{
	{domain.JobTypeIntern, []string{"实习", "intern"}},
	{domain.JobTypeCampus, []string{"校招", "校园", "campus"}},
	{domain.JobTypeSocial, []string{"社招", "social"}},
}

// ClassifyJobType maps free text (a recruit-type label or a title) to a
// job type. Intern wins over campus when both appear, matching how the
// sites label "校招实习" postings.
func ClassifyJobType(text string) domain.JobType {
	lower := strings.ToLower(text)
	for _, set := range jobTypeKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.jobType
			}
		}
	}
	return domain.JobTypeUnknown
}

// IsInternText reports whether text signals an intern posting, used by
// adapters to honor InternOnly before returning results.
func IsInternText(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "实习") || strings.Contains(lower, "intern")
}
