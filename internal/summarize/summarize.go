// Package summarize renders natural-language summaries of per-record
// decisions. The summarizer is a capability: callers supply any
// implementation, and failures never block a decision.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/davidahmann/txnscore/pkg/types"
)

// Summarizer turns a decision into a short human-readable summary.
type Summarizer interface {
	Summarize(ctx context.Context, d types.Decision) (string, error)
}

// Template is the fallback summarizer. It is deterministic and never fails.
type Template struct{}

func (Template) Summarize(_ context.Context, d types.Decision) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Record %s: %s (quality %.1f, confidence %s).", d.RecordID, d.Action, float64(d.DQSFinal), d.ConfidenceBand)
	if d.PrimaryReason != "" {
		fmt.Fprintf(&b, " Reason: %s.", d.PrimaryReason)
	}
	if len(d.SupportingFactors) > 0 {
		fmt.Fprintf(&b, " Factors: %s.", strings.Join(d.SupportingFactors, "; "))
	}
	if d.RequiresHumanReview {
		b.WriteString(" Human review required.")
	}
	return b.String(), nil
}

// Run invokes s under a timeout and falls back to the template summary when
// s is nil, errors, or exceeds the deadline.
func Run(ctx context.Context, s Summarizer, d types.Decision, timeout time.Duration) string {
	fallback, _ := Template{}.Summarize(ctx, d)
	if s == nil {
		return fallback
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type reply struct {
		text string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		text, err := s.Summarize(ctx, d)
		ch <- reply{text, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil || r.text == "" {
			return fallback
		}
		return r.text
	case <-ctx.Done():
		return fallback
	}
}
