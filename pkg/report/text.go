package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"zotregistry.dev/zarc/pkg/aggregate"
	"zotregistry.dev/zarc/pkg/eligibility"
	"zotregistry.dev/zarc/pkg/estimate"
	"zotregistry.dev/zarc/pkg/evaluator"
)

const (
	boxWidth  = 78
	ruleWidth = 40

	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

const (
	colRankIndex = iota
	colRepoIndex
	colTagIndex
	colSizeIndex
	colDateIndex
	colNoteIndex

	topTableCols = 6

	repoWidth = 48
	tagWidth  = 30
)

// FormatSize prints a size in MB, or in GB from one gigabyte on, with two decimals.
func FormatSize(size int64) string {
	megabytes := float64(size) / (1024 * 1024) //nolint:mnd
	gigabytes := megabytes / 1024               //nolint:mnd

	if gigabytes >= 1 {
		return fmt.Sprintf("%.2f GB", gigabytes)
	}

	return fmt.Sprintf("%.2f MB", megabytes)
}

func humanSize(size int64) string {
	if size < 0 {
		return "-" + humanize.IBytes(uint64(-size))
	}

	return humanize.IBytes(uint64(size))
}

func center(text string, width int) string {
	if len(text) >= width {
		return text
	}

	left := (width - len(text)) / 2 //nolint:mnd

	return strings.Repeat(" ", left) + text + strings.Repeat(" ", width-len(text)-left)
}

func banner(builder *strings.Builder, title string) {
	fmt.Fprintln(builder, "+"+strings.Repeat("=", boxWidth)+"+")
	fmt.Fprintln(builder, "|"+strings.Repeat(" ", boxWidth)+"|")
	fmt.Fprintln(builder, "|"+center(title, boxWidth)+"|")
	fmt.Fprintln(builder, "|"+strings.Repeat(" ", boxWidth)+"|")
	fmt.Fprintln(builder, "+"+strings.Repeat("=", boxWidth)+"+")
	fmt.Fprintln(builder)
}

func section(builder *strings.Builder, title string) {
	fmt.Fprintln(builder, "  "+title)
	fmt.Fprintln(builder, "  "+strings.Repeat("-", ruleWidth))
}

func (rep Report) stringPlainText() string {
	var builder strings.Builder

	fmt.Fprintln(&builder)
	banner(&builder, "REGISTRY COLD STORAGE MIGRATION REPORT")

	rep.writeHeader(&builder)
	rep.writeRepositories(&builder)
	rep.writeSummary(&builder)
	rep.writeLargest(&builder)

	return builder.String()
}

func (rep Report) writeHeader(builder *strings.Builder) {
	fmt.Fprintf(builder, "  Report Generated : %s\n", rep.GeneratedAt.UTC().Format(timestampLayout))
	fmt.Fprintf(builder, "  Run ID           : %s\n", rep.RunID)

	if rep.Region != "" {
		fmt.Fprintf(builder, "  Registry Region  : %s\n", rep.Region)
	}

	fmt.Fprintf(builder, "  Inventory Source : %s\n", rep.Source)

	switch {
	case rep.Scope == "":
		fmt.Fprintln(builder, "  Target Scope     : All Repositories")
	case strings.ContainsAny(rep.Scope, "*?[{"):
		fmt.Fprintf(builder, "  Target Scope     : Repositories matching '%s'\n", rep.Scope)
	default:
		fmt.Fprintf(builder, "  Target Scope     : Single Repository '%s'\n", rep.Scope)
	}

	fmt.Fprintln(builder)
	section(builder, "MIGRATION CRITERIA")
	fmt.Fprintf(builder, "  Policy              : %s\n", rep.Criteria.Policy)

	if rep.Criteria.Policy == eligibility.DateRangeVariant {
		fmt.Fprintf(builder, "  Last Pulled Between : %s to %s\n", rep.Criteria.StartDate, rep.Criteria.EndDate)
		fmt.Fprintln(builder, "  (Images last pulled/created within this date range will be migrated)")
	} else {
		fmt.Fprintf(builder, "  Pushed Between      : %s to %s\n", rep.Criteria.StartDate, rep.Criteria.EndDate)
		fmt.Fprintf(builder, "  Not Pulled Within   : %d days\n", rep.Criteria.CutoffDays)

		if rep.Criteria.Policy == eligibility.RepositoryRecencyVariant {
			fmt.Fprintln(builder, "  (Repositories without a recent pull have their images in range migrated)")
		} else {
			fmt.Fprintln(builder, "  (Images in range and without a recent pull will be migrated)")
		}
	}

	fmt.Fprintln(builder)
	fmt.Fprintln(builder, strings.Repeat("-", boxWidth+2)) //nolint:mnd
	fmt.Fprintln(builder)
}

func (rep Report) writeRepositories(builder *strings.Builder) {
	failures := rep.Summary.Failures
	repos := rep.Repositories

	// merge both lists back into scan order
	for len(repos) > 0 || len(failures) > 0 {
		if len(failures) == 0 || (len(repos) > 0 && repos[0].Index < failures[0].Index) {
			writeRepository(builder, repos[0])
			repos = repos[1:]

			continue
		}

		fmt.Fprintln(builder, "+-- REPOSITORY: "+failures[0].Repository)
		fmt.Fprintln(builder, "|")
		fmt.Fprintf(builder, "|  [ERROR] Failed to process repository: %s\n", failures[0].Error)
		closeRepository(builder)

		failures = failures[1:]
	}
}

func closeRepository(builder *strings.Builder) {
	fmt.Fprintln(builder, "|")
	fmt.Fprintln(builder, "+"+strings.Repeat("-", boxWidth+1))
	fmt.Fprintln(builder)
}

func writeRepository(builder *strings.Builder, repo evaluator.RepositoryResult) {
	fmt.Fprintln(builder, "+-- REPOSITORY: "+repo.Summary.Repository)
	fmt.Fprintln(builder, "|")

	if repo.Summary.Scanned == 0 {
		fmt.Fprintln(builder, "|  [INFO] No images found in this repository")
		closeRepository(builder)

		return
	}

	fmt.Fprintf(builder, "|  Total images in repository: %d\n", repo.Summary.Scanned)

	if repo.LastPull != nil {
		fmt.Fprintf(builder, "|  Repository last pulled    : %s\n", formatDay(*repo.LastPull))
	}

	fmt.Fprintln(builder, "|")

	for _, img := range repo.Images {
		if !img.Result.Eligible {
			continue
		}

		status, seen := "Created", img.Image.PushedAt
		if img.Image.LastPulledAt != nil {
			status, seen = "Last pulled", *img.Image.LastPulledAt
		}

		fmt.Fprintf(builder, "|  >> MIGRATE >> %-30s %10s  %s: %s  [%s]\n", img.Image.Tag,
			FormatSize(img.Image.SizeBytes), status, formatDay(seen), img.Result)
	}

	fmt.Fprintln(builder, "|")

	if repo.Summary.Eligible > 0 {
		fmt.Fprintf(builder, "|  Repository Summary: %d to migrate (%s)\n", repo.Summary.Eligible,
			FormatSize(repo.Summary.EligibleBytes))
	} else {
		fmt.Fprintln(builder, "|  Repository Summary: No images qualify for migration")
	}

	closeRepository(builder)
}

func (rep Report) writeSummary(builder *strings.Builder) {
	summary := rep.Summary

	fmt.Fprintln(builder)
	banner(builder, "MIGRATION SUMMARY")

	section(builder, "Repositories")
	fmt.Fprintf(builder, "    Total analyzed               : %d\n", summary.RepositoriesAttempted)
	fmt.Fprintf(builder, "    With migration candidates    : %d\n", summary.RepositoriesWithCandidates)
	fmt.Fprintf(builder, "    Failed                       : %d\n", summary.RepositoriesFailed)
	fmt.Fprintf(builder, "    Run status                   : %s\n", summary.Status)
	fmt.Fprintln(builder)

	section(builder, "Images Analysis")
	fmt.Fprintf(builder, "    Total scanned                : %d\n", summary.ImagesScanned)
	fmt.Fprintf(builder, "    Images to MIGRATE            : %d\n", summary.ImagesEligible)
	fmt.Fprintf(builder, "    Images to keep               : %d\n", summary.ImagesIneligible)
	fmt.Fprintf(builder, "    Migration percentage         : %.1f%%\n", summary.PercentEligible)
	fmt.Fprintln(builder)

	section(builder, "Migration Size")
	fmt.Fprintf(builder, "    Total data to migrate        : %s (%s)\n", FormatSize(summary.EligibleBytes),
		humanSize(summary.EligibleBytes))
	fmt.Fprintln(builder)

	if summary.ImagesEligible == 0 {
		fmt.Fprintln(builder, "  [RESULT] No images found matching the migration criteria")
		fmt.Fprintln(builder)

		return
	}

	section(builder, fmt.Sprintf("ESTIMATED MIGRATION TIME (at %s MB/s)",
		strconv.FormatFloat(summary.ThroughputMBps, 'f', -1, 64)))
	fmt.Fprint(builder, FormatDuration(summary.Estimate))
	fmt.Fprintln(builder)
}

// FormatDuration prints an estimate as seconds, minutes, hours and, for long transfers, days.
func FormatDuration(duration estimate.Duration) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "    %s seconds\n", humanize.Comma(int64(math.Round(duration.Seconds))))
	fmt.Fprintf(&builder, "    %s minutes\n", humanize.FormatFloat("#,###.#", duration.Minutes))
	fmt.Fprintf(&builder, "    %s hours\n", humanize.FormatFloat("#,###.##", duration.Hours))

	if duration.SpansDays() {
		fmt.Fprintf(&builder, "    %s days\n", humanize.FormatFloat("#,###.##", duration.Days))
	}

	return builder.String()
}

func getTopTableWriter(builder *strings.Builder) *tablewriter.Table {
	symbols := tw.NewSymbolCustom("Spaces").
		WithRow("").
		WithColumn(" ").
		WithTopLeft("").
		WithTopMid("").
		WithTopRight("").
		WithMidLeft("").
		WithCenter("").
		WithMidRight("").
		WithBottomLeft("").
		WithBottomMid("").
		WithBottomRight("")

	table := tablewriter.NewWriter(builder)

	table.Options(
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{
				Left:   tw.Off,
				Right:  tw.Off,
				Top:    tw.Off,
				Bottom: tw.Off,
			},
			Symbols: symbols,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader:     tw.Off,
					ShowFooter:     tw.Off,
					BetweenRows:    tw.Off,
					BetweenColumns: tw.On,
				},
			},
		}),
		tablewriter.WithPadding(tw.Padding{
			Left:  "  ",
			Right: "",
		}),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)

	return table
}

func (rep Report) writeLargest(builder *strings.Builder) {
	largest := rep.Summary.TopN
	if len(largest) == 0 {
		return
	}

	fmt.Fprintln(builder)
	banner(builder, fmt.Sprintf("TOP %d LARGEST MIGRATIONS", len(largest)))

	table := getTopTableWriter(builder)

	header := make([]string, topTableCols)
	header[colRankIndex] = "#"
	header[colRepoIndex] = "REPOSITORY"
	header[colTagIndex] = "TAG"
	header[colSizeIndex] = "SIZE"
	header[colDateIndex] = "DATE"
	header[colNoteIndex] = "NOTE"

	table.Append(header) //nolint:errcheck

	repoLen := len("REPOSITORY")
	tagLen := len("TAG")

	for idx, candidate := range largest {
		repoLen = max(repoLen, len(candidate.Repository))
		tagLen = max(tagLen, len(candidate.Tag))

		table.Append(topRow(idx+1, candidate)) //nolint:errcheck
	}

	table.Options(
		tablewriter.WithColumnWidths(tw.NewMapper[int, int]().
			Set(colRepoIndex, min(repoLen, repoWidth)).
			Set(colTagIndex, min(tagLen, tagWidth))),
	)

	table.Render() //nolint:errcheck
	fmt.Fprintln(builder)
}

func topRow(rank int, candidate aggregate.Candidate) []string {
	row := make([]string, topTableCols)

	row[colRankIndex] = fmt.Sprintf("%2d.", rank)
	row[colRepoIndex] = candidate.Repository
	row[colTagIndex] = candidate.Tag
	row[colSizeIndex] = FormatSize(candidate.SizeBytes)
	row[colDateIndex] = formatDay(candidate.LastSeen())

	if candidate.NeverPulled {
		row[colNoteIndex] = "[Never Pulled]"
	}

	return row
}

func savedFooter(reportPath string) string {
	var builder strings.Builder

	fmt.Fprintln(&builder)
	fmt.Fprintln(&builder, strings.Repeat("=", boxWidth+2)) //nolint:mnd
	fmt.Fprintln(&builder, "  Report saved to: "+reportPath)
	fmt.Fprintln(&builder, strings.Repeat("=", boxWidth+2)) //nolint:mnd

	return builder.String()
}

func formatDay(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
