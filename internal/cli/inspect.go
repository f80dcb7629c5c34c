package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"catalogcore/internal/canon"
	"catalogcore/internal/diff"
	"catalogcore/internal/filter"
	"catalogcore/internal/graphview"
	"catalogcore/internal/journal"
	"catalogcore/internal/source"
	"catalogcore/internal/watch"
	"catalogcore/pkg/domain"
)

var errValidation = errors.New("validation reported findings")

func (c *CLI) validateCommand() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate KEY",
		Short: "Check a catalog against the schema and reference rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.openSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			report, err := s.svc.Validate(ctx)
			if err != nil {
				return err
			}
			printReport(c.out, report)
			if strict && !report.Clean() {
				return errValidation
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any finding is reported")
	return cmd
}

func (c *CLI) diffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff KEY ORIGINAL",
		Short: "List entity and relation changes between two catalogs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.openSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			original, err := source.ReadDocument(ctx, s.src, args[1])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[1], err)
			}
			changes := diff.Compute(s.svc.Snapshot(), domain.NewSnapshot(canon.Canonicalize(original)))
			printChanges(c.out, changes)
			return nil
		},
	}
}

func (c *CLI) expandCommand() *cobra.Command {
	var group bool
	cmd := &cobra.Command{
		Use:   "expand KEY [CODE]",
		Short: "Print the resolved marketplace tree",
		Long:  "Print every marketplace (or only CODE) with its groups and widgets in display order. With --group, CODE names a group.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.openSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			if group {
				if len(args) != 2 {
					return errors.New("--group needs a group code")
				}
				widgets, err := s.svc.ExpandedGroup(ctx, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, styleTitle.Render(args[1]))
				for _, w := range widgets {
					fmt.Fprintf(c.out, "  %s %s\n", order(w.DisplayOrder), entityLine(w.Widget.Code, w.Widget.Name()))
				}
				return nil
			}

			codes := args[1:]
			if len(codes) == 0 {
				for _, e := range s.svc.ListAll(domain.EntityMarketplace) {
					codes = append(codes, e.EntityCode())
				}
			}
			for _, code := range codes {
				tree, err := s.svc.ExpandedMarketplace(ctx, code)
				if err != nil {
					return err
				}
				printTree(c.out, tree, 0)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "expand a group instead of a marketplace")
	return cmd
}

// parseWhere reads kind.field=v1,v2. Every value is matched as a string and,
// when it parses as a JSON scalar, also as that typed value.
func parseWhere(q filter.Query, spec string) (filter.Query, error) {
	lhs, rhs, ok := strings.Cut(spec, "=")
	if !ok {
		return q, fmt.Errorf("where %q: expected kind.field=value", spec)
	}
	kindName, field, ok := strings.Cut(lhs, ".")
	if !ok || field == "" {
		return q, fmt.Errorf("where %q: expected kind.field=value", spec)
	}
	kind, err := domain.ParseEntityType(kindName)
	if err != nil {
		return q, err
	}
	var values []any
	for _, v := range strings.Split(rhs, ",") {
		values = append(values, v)
		var typed any
		if err := json.Unmarshal([]byte(v), &typed); err == nil {
			if _, isString := typed.(string); !isString {
				values = append(values, typed)
			}
		}
	}
	return q.Where(kind, field, values...), nil
}

func (c *CLI) filterCommand() *cobra.Command {
	var (
		term    string
		wheres  []string
		exprs   []string
		options bool
	)
	cmd := &cobra.Command{
		Use:   "filter KEY",
		Short: "Show the entities visible under a filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.openSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			if options {
				for _, opt := range s.svc.AvailableFilters() {
					fmt.Fprintf(c.out, "%s.%s %s\n", opt.Kind, styleCode.Render(opt.Field), styleDim.Render(fmt.Sprint(opt.Values)))
				}
				return nil
			}

			q := filter.Query{Term: term}
			for _, w := range wheres {
				if q, err = parseWhere(q, w); err != nil {
					return err
				}
			}
			for _, e := range exprs {
				kindName, src, ok := strings.Cut(e, "=")
				if !ok {
					return fmt.Errorf("expr %q: expected kind=EXPR", e)
				}
				kind, err := domain.ParseEntityType(kindName)
				if err != nil {
					return err
				}
				if q.Expressions == nil {
					q.Expressions = map[domain.EntityType]string{}
				}
				q.Expressions[kind] = src
			}

			view, err := s.svc.FilteredView(ctx, q)
			if err != nil {
				return err
			}
			for _, kind := range domain.EntityTypes() {
				fmt.Fprintln(c.out, styleTitle.Render(fmt.Sprintf("%s (%d)", kind.Collection(), view.Len(kind))))
				for _, code := range view.Codes(kind) {
					e, _ := view.Find(kind, code)
					name, _ := domain.AttributesOf(e).Text(domain.FieldName)
					fmt.Fprintf(c.out, "  %s\n", entityLine(code, name))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&term, "term", "", "case-insensitive code substring")
	cmd.Flags().StringArrayVar(&wheres, "where", nil, "field predicate kind.field=v1,v2 (repeatable)")
	cmd.Flags().StringArrayVar(&exprs, "expr", nil, "boolean expression kind=EXPR (repeatable)")
	cmd.Flags().BoolVar(&options, "options", false, "list the available filter values instead")
	return cmd
}

func (c *CLI) graphCommand() *cobra.Command {
	var (
		svgPath string
		actions bool
	)
	cmd := &cobra.Command{
		Use:   "graph KEY",
		Short: "Render the reference graph as DOT or SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.openSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			dot := graphview.ToDOT(s.svc.Snapshot(), graphview.Options{ActionRefs: actions})
			if svgPath == "" {
				fmt.Fprint(c.out, dot)
				return nil
			}
			p := newProgress(loggerFromContext(ctx))
			svg, err := graphview.RenderSVG(ctx, dot)
			if err != nil {
				return err
			}
			if err := os.WriteFile(svgPath, svg, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", svgPath, err)
			}
			p.done("graph rendered", "file", svgPath, "bytes", len(svg))
			return nil
		},
	}
	cmd.Flags().StringVar(&svgPath, "svg", "", "write SVG to this file instead of printing DOT")
	cmd.Flags().BoolVar(&actions, "actions", false, "include marketplaceId action references")
	return cmd
}

func (c *CLI) watchCommand() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch PATH",
		Short: "Revalidate a local catalog file whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.newService(ctx, nil)
			if err != nil {
				return err
			}
			w, err := watch.New(args[0], svc, watch.WithDebounce(debounce))
			if err != nil {
				return err
			}
			logger := loggerFromContext(ctx)
			logger.Info("watching", "path", w.Path())
			return w.Run(ctx, func(res watch.Result) {
				fmt.Fprintln(c.out, styleDim.Render(res.At.Local().Format("15:04:05")+" "+res.Path))
				if res.Err != nil {
					fmt.Fprintln(c.out, styleError.Render(FormatError(res.Err)))
					return
				}
				printReport(c.out, res.Report)
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "wait this long for writes to settle")
	return cmd
}

func (c *CLI) journalCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recorded exports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			j, err := journal.Open(ctx, c.cfg.Journal)
			if err != nil {
				return err
			}
			defer j.Close()
			return c.printJournal(ctx, j, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show (0 for all)")
	return cmd
}

func (c *CLI) printJournal(ctx context.Context, j journal.Journal, limit int) error {
	entries, err := j.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, styleDim.Render("no exports recorded"))
		return nil
	}
	for _, e := range entries {
		status := styleSuccess.Render("clean")
		if e.Errors > 0 || e.Warnings > 0 {
			status = styleWarning.Render(fmt.Sprintf("%d errors, %d warnings", e.Errors, e.Warnings))
		}
		fmt.Fprintf(c.out, "%s %s %s %d changes %s\n",
			styleDim.Render(e.RecordedAt.Format(time.RFC3339)), styleCode.Render(e.Key), e.Source, e.Changes, status)
	}
	return nil
}
