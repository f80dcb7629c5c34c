package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"catalogcore/internal/resolve"
	"catalogcore/pkg/domain"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorDim    = lipgloss.Color("240")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleCode    = lipgloss.NewStyle().Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
)

func severityStyle(s domain.Severity) lipgloss.Style {
	if s == domain.SeverityError {
		return styleError
	}
	return styleWarning
}

func printReport(w io.Writer, report domain.Report) {
	if report.Clean() {
		fmt.Fprintln(w, styleSuccess.Render("✓ no findings"))
		return
	}
	section := func(title string, findings []domain.Violation) {
		if len(findings) == 0 {
			return
		}
		fmt.Fprintln(w, styleTitle.Render(fmt.Sprintf("%s (%d)", title, len(findings))))
		for _, v := range findings {
			var where string
			switch {
			case v.Path != "":
				where = v.Path
			case v.Location.Kind != "":
				where = v.Location.String()
			}
			fmt.Fprintf(w, "  %s %s %s\n", severityStyle(v.Severity).Render(string(v.Severity)),
				styleDim.Render(v.Rule), v.Message)
			if where != "" && !strings.Contains(v.Message, where) {
				fmt.Fprintf(w, "      %s\n", styleDim.Render("at "+where))
			}
		}
	}
	section("Schema", report.Schema)
	section("Relations", report.Relations)
}

var actionStyles = map[domain.ChangeAction]lipgloss.Style{
	domain.ChangeAdded:    styleSuccess,
	domain.ChangeModified: styleWarning,
	domain.ChangeDeleted:  styleError,
}

func printChanges(w io.Writer, changes []domain.ChangeItem) {
	if len(changes) == 0 {
		fmt.Fprintln(w, styleDim.Render("no changes"))
		return
	}
	fmt.Fprintln(w, styleTitle.Render(fmt.Sprintf("Changes (%d)", len(changes))))
	for _, c := range changes {
		line := fmt.Sprintf("  %s %s %s", actionStyles[c.Action].Render(fmt.Sprintf("%-8s", c.Action)), c.Kind, styleCode.Render(c.Code))
		if c.Detail != "" {
			line += " " + styleDim.Render(c.Detail)
		}
		fmt.Fprintln(w, line)
	}
}

func printLocations(w io.Writer, refs []domain.Location) {
	if len(refs) == 0 {
		fmt.Fprintln(w, styleDim.Render("no references"))
		return
	}
	for _, ref := range refs {
		fmt.Fprintf(w, "  %s\n", ref)
	}
}

func entityLine(code, name string) string {
	if name == "" {
		return styleCode.Render(code)
	}
	return styleCode.Render(code) + " " + name
}

func order(v float64) string {
	return styleDim.Render(fmt.Sprintf("[%v]", v))
}

func printTree(w io.Writer, node resolve.ExpandedMarketplace, depth int) {
	indent := strings.Repeat("  ", depth)
	line := indent + entityLine(node.Marketplace.Code, node.Marketplace.Name())
	if depth > 0 {
		line = indent + order(node.DisplayOrder) + " " + entityLine(node.Marketplace.Code, node.Marketplace.Name())
	}
	if node.Cycle {
		line += " " + styleWarning.Render("(cycle)")
	}
	fmt.Fprintln(w, line)
	for _, child := range node.Marketplaces {
		printTree(w, child, depth+1)
	}
	for _, g := range node.Groups {
		fmt.Fprintf(w, "%s  %s %s\n", indent, order(g.DisplayOrder), entityLine(g.Group.Code, g.Group.Name()))
		for _, wd := range g.Widgets {
			fmt.Fprintf(w, "%s    %s %s\n", indent, order(wd.DisplayOrder), entityLine(wd.Widget.Code, wd.Widget.Name()))
		}
	}
}
