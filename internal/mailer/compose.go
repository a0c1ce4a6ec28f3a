package mailer

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/notesummarizer/internal/preview"
)

// DefaultSubject is used when the summary has no heading.
const DefaultSubject = "Meeting Summary"

const maxSubjectLen = 120

// atxHeading matches "# Title" through "###### Title".
var atxHeading = regexp.MustCompile(`^#{1,6}[ \t]+(.*?)(?:[ \t]+#+)?[ \t]*$`)

// Compose builds the message for one recipient: the markdown as the text
// part and its rendering as the HTML part.
func Compose(markdown, to string) (Message, error) {
	html, err := preview.Render(markdown)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: SubjectFromMarkdown(markdown),
		Text:    markdown,
		HTML:    string(html),
	}, nil
}

// SubjectFromMarkdown uses the first ATX heading of the summary.
func SubjectFromMarkdown(markdown string) string {
	sc := bufio.NewScanner(strings.NewReader(markdown))
	for sc.Scan() {
		m := atxHeading.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		title := strings.Trim(m[1], "*_ ")
		if title == "" {
			continue
		}
		if r := []rune(title); len(r) > maxSubjectLen {
			title = strings.TrimSpace(string(r[:maxSubjectLen]))
		}
		return title
	}
	return DefaultSubject
}
