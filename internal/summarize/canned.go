package summarize

import (
	"context"
	"fmt"
	"time"
)

const cannedSummary = `# Meeting Summary

## Key Points:
• Discussed project timeline and milestones
• Reviewed budget allocation for Q4
• Identified potential risks and mitigation strategies
• Assigned action items to team members

## Action Items:
1. John to finalize technical specifications by Friday
2. Sarah to coordinate with design team for UI mockups
3. Mike to prepare budget report for next week's review
4. Schedule follow-up meeting for progress check

## Decisions Made:
- Approved moving forward with the new feature set
- Decided to extend deadline by one week for quality assurance
- Allocated additional resources for testing phase

## Next Steps:
- Weekly progress reviews every Tuesday
- Final presentation scheduled for month-end
- Stakeholder approval meeting set for next Friday

 *This summary was generated based on your instructions: "%s"*`

// Canned returns a fixed document after a delay. The transcript is ignored
// and the instruction is echoed in a trailing note.
type Canned struct {
	Delay time.Duration
}

func NewCanned(delay time.Duration) *Canned {
	return &Canned{Delay: delay}
}

func (c *Canned) Name() string { return BackendCanned }

func (c *Canned) Summarize(ctx context.Context, _ []byte, instruction string) (string, error) {
	if c.Delay > 0 {
		t := time.NewTimer(c.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return fmt.Sprintf(cannedSummary, instruction), nil
}
