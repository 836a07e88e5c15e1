package sources

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bull/course-rag/internal/course"
)

var (
	coursePrefix  = regexp.MustCompile(`(?i)CS61A\s*[-|]\s*`)
	titleSuffix   = regexp.MustCompile(`\s+[-|]\s+.*$`)
	weekInPath    = regexp.MustCompile(`(?i)week[-\s_]?(\d+)`)
	commonTopics  = []string{"python", "functions", "control", "recursion", "data structures", "object-oriented programming", "algorithms", "testing", "debugging", "environment diagrams", "abstraction", "inheritance", "polymorphism"}
	objectiveKeys = []string{"learning objective", "goal", "understand", "learn"}
	prereqKeys    = []string{"prerequisite", "required", "before"}
)

const (
	maxObjectives    = 5
	maxPrerequisites = 3
)

// cleanTitle drops the course prefix and any " - site name" style suffix.
func cleanTitle(title string) string {
	title = coursePrefix.ReplaceAllString(title, "")
	title = titleSuffix.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}

func weekFromPath(path string) *int {
	m := weekInPath.FindStringSubmatch(path)
	if m == nil {
		return nil
	}
	w, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &w
}

func inferDifficulty(content string) course.Difficulty {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "advanced") || strings.Contains(lower, "complex"):
		return course.Advanced
	case strings.Contains(lower, "intermediate") || strings.Contains(lower, "medium"):
		return course.Intermediate
	default:
		return course.Beginner
	}
}

func extractTopics(content string) []string {
	lower := strings.ToLower(content)
	topics := []string{}
	for _, topic := range commonTopics {
		if strings.Contains(lower, topic) {
			topics = append(topics, topic)
		}
	}
	return topics
}

func inferType(path, content string) course.SectionType {
	p := strings.ToLower(path)
	c := strings.ToLower(content)
	switch {
	case strings.Contains(p, "lab") || strings.Contains(p, "homework") || strings.Contains(c, "assignment"):
		return course.Assignment
	case strings.Contains(p, "exam") || strings.Contains(c, "exam") || strings.Contains(c, "test"):
		return course.Exam
	case strings.Contains(p, "polic") || strings.Contains(c, "policy") || strings.Contains(c, "rule"):
		return course.Policy
	default:
		return course.Lecture
	}
}

// matchingLines returns up to max trimmed lines containing any of the keys.
func matchingLines(lines []string, keys []string, max int) []string {
	var out []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, k := range keys {
			if strings.Contains(lower, k) {
				out = append(out, strings.TrimSpace(line))
				break
			}
		}
		if len(out) == max {
			break
		}
	}
	return out
}
