package pipeline

import (
	"fmt"
	"strings"

	"github.com/davidahmann/txnscore/pkg/types"
)

// executionReport renders the per-stage timing trace for a run. Purely
// derived from the result; it has no decision authority.
func executionReport(result types.PipelineResult) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString("============================================================\n")
	sb.WriteString("            PIPELINE EXECUTION REPORT\n")
	sb.WriteString("============================================================\n\n")
	fmt.Fprintf(&sb, "Execution ID: %s\n", result.ExecutionID)
	fmt.Fprintf(&sb, "Batch ID: %s\n", result.BatchID)
	fmt.Fprintf(&sb, "Total Records: %d\n", result.TotalRecords)
	fmt.Fprintf(&sb, "Total Duration: %.2f ms\n\n", float64(result.TotalDurationMS))

	sb.WriteString("STAGES:\n")
	for _, t := range result.StageTimings {
		fmt.Fprintf(&sb, "  [%-8s] %d %-24s %8.2f ms\n", t.Status, t.StageID, t.StageName, float64(t.DurationMS))
	}

	if len(result.Errors) > 0 {
		sb.WriteString("\nERRORS:\n")
		for _, e := range result.Errors {
			fmt.Fprintf(&sb, "  - %s\n", e)
		}
	}

	sb.WriteString("\n============================================================\n")
	return sb.String()
}
