// Package report renders a run record as Markdown and HTML.
package report

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/AaronLay10/DiagramEngine/internal/model"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// DraftGetter loads a saved draft by id.
type DraftGetter interface {
	GetDraft(ctx context.Context, id int64) (model.Draft, error)
}

// RunDraft loads the draft referenced by the run's code artifact. It
// returns nil when the run saved none.
func RunDraft(ctx context.Context, rec *model.RunRecord, drafts DraftGetter) (*model.Draft, error) {
	for _, a := range rec.Artifacts {
		if a.Type != model.ArtifactCode {
			continue
		}
		id, err := strconv.ParseInt(a.RefID, 10, 64)
		if err != nil {
			return nil, nil
		}
		d, err := drafts.GetDraft(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("draft %d: %w", id, err)
		}
		return &d, nil
	}
	return nil, nil
}

// Markdown renders rec. When draft is non-nil its code is appended in a
// fenced block tagged with the DSL.
func Markdown(rec *model.RunRecord, draft *model.Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", rec.RunID)
	fmt.Fprintf(&b, "Status: **%s**\n\n", rec.Status)
	if last := rec.LastStep(); rec.Status == model.RunFailed && last != nil && last.Error != nil {
		fmt.Fprintf(&b, "Failed at step `%s`: %s\n\n", last.Name, *last.Error)
	}

	b.WriteString("## Steps\n\n")
	if len(rec.Steps) == 0 {
		b.WriteString("No steps recorded.\n\n")
	} else {
		b.WriteString("| # | step | started | duration | error |\n")
		b.WriteString("|---|------|---------|----------|-------|\n")
		for i, s := range rec.Steps {
			errText := ""
			if s.Error != nil {
				errText = *s.Error
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				i+1, cell(s.Name), stamp(s.StartedAt), duration(s.StartedAt, s.EndedAt), cell(errText))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Artifacts\n\n")
	if len(rec.Artifacts) == 0 {
		b.WriteString("No artifacts recorded.\n\n")
	} else {
		b.WriteString("| type | ref | preview |\n")
		b.WriteString("|------|-----|---------|\n")
		for _, a := range rec.Artifacts {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(a.Type), cell(a.RefID), cell(a.PreviewText))
		}
		b.WriteString("\n")
	}

	if draft != nil {
		fmt.Fprintf(&b, "## Draft %d\n\n", draft.ID)
		fence := "```"
		for strings.Contains(draft.Code, fence) {
			fence += "`"
		}
		fmt.Fprintf(&b, "%s%s\n%s\n%s\n", fence, draft.DslType, draft.Code, fence)
	}
	return b.String()
}

// HTML renders the Markdown report to an HTML fragment.
func HTML(rec *model.RunRecord, draft *model.Draft) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(rec, draft)), &buf); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func stamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func duration(start, end *time.Time) string {
	if start == nil || end == nil {
		return "-"
	}
	return end.Sub(*start).String()
}
