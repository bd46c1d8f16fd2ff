package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"labelreel/internal/pipeline"
)

func renderSummary(w io.Writer, summary pipeline.Summary, colors palette) {
	rows := [][]string{
		{"Run", summary.RunID},
		{"Format", summary.Format},
		{"Output", summary.OutputDir},
		{"Tasks", humanize.Comma(int64(summary.Tasks))},
		{"Videos", humanize.Comma(int64(summary.Videos))},
		{"Images", humanize.Comma(int64(summary.Images))},
		{"Annotations", humanize.Comma(int64(summary.Annotations))},
		{"Frames skipped", humanize.Comma(int64(summary.FramesSkipped))},
		{"Duration", summary.Duration().Round(time.Millisecond).String()},
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))

	if summary.IssueTotal() == 0 {
		fmt.Fprintln(w, colors.good("No issues"))
		return
	}
	issueRows := make([][]string, 0, len(summary.Issues))
	for _, kind := range summary.IssueKinds() {
		issueRows = append(issueRows, []string{colors.warn(string(kind)), strconv.Itoa(summary.Issues[kind])})
	}
	fmt.Fprintln(w, renderTable([]string{"Issue", "Count"}, issueRows, []columnAlignment{alignLeft, alignRight}))
}
