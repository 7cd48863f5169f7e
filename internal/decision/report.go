package decision

import (
	"fmt"
	"strings"

	"github.com/davidahmann/txnscore/pkg/types"
)

const (
	maxEscalationsListed = 10
	maxReviewsListed     = 5
)

// Report renders the human-readable decision summary for a batch.
func Report(bd types.BatchDecision) string {
	if bd.TotalRecords == 0 && bd.BatchID == "" {
		return "No decisions made."
	}

	humanReview := "NO"
	if bd.RequiresHumanReview {
		humanReview = "YES"
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString("============================================================\n")
	sb.WriteString("              FINAL DECISION REPORT\n")
	sb.WriteString("============================================================\n\n")
	fmt.Fprintf(&sb, "Batch ID: %s\n", bd.BatchID)
	fmt.Fprintf(&sb, "Timestamp: %s\n", bd.Timestamp)
	fmt.Fprintf(&sb, "Total Records: %d\n\n", bd.TotalRecords)
	sb.WriteString("ACTION SUMMARY:\n")
	fmt.Fprintf(&sb, "  [OK]  SAFE_TO_USE:     %5d\n", bd.SafeCount)
	fmt.Fprintf(&sb, "  [??]  REVIEW_REQUIRED: %5d\n", bd.ReviewCount)
	fmt.Fprintf(&sb, "  [!!]  ESCALATE:        %5d\n", bd.EscalateCount)
	fmt.Fprintf(&sb, "  [--]  NO_ACTION:       %5d\n\n", bd.NoActionCount)
	fmt.Fprintf(&sb, "Overall Quality Rate: %.1f%%\n", float64(bd.OverallQualityRate))
	fmt.Fprintf(&sb, "Human Review Required: %s\n\n", humanReview)
	sb.WriteString("============================================================\n")

	escalated := filterByAction(bd.Decisions, types.ActionEscalate)
	if len(escalated) > 0 {
		sb.WriteString("\n[!!] ESCALATED RECORDS:\n")
		for _, d := range truncate(escalated, maxEscalationsListed) {
			fmt.Fprintf(&sb, "  - %s: %s\n", d.RecordID, d.PrimaryReason)
		}
	}

	reviews := filterByAction(bd.Decisions, types.ActionReviewRequired)
	if len(reviews) > 0 {
		fmt.Fprintf(&sb, "\n[??] RECORDS REQUIRING REVIEW: %d\n", len(reviews))
		for _, d := range truncate(reviews, maxReviewsListed) {
			fmt.Fprintf(&sb, "  - %s: %s\n", d.RecordID, d.PrimaryReason)
		}
	}

	return sb.String()
}

func filterByAction(decisions []types.Decision, action types.Action) []types.Decision {
	var out []types.Decision
	for _, d := range decisions {
		if d.Action == action {
			out = append(out, d)
		}
	}
	return out
}

func truncate(decisions []types.Decision, n int) []types.Decision {
	if len(decisions) > n {
		return decisions[:n]
	}
	return decisions
}
