package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"catalogcore/internal/mutate"
	"catalogcore/pkg/domain"
)

// editOpts are the flags shared by every editing command.
type editOpts struct {
	yes    bool // export even when validation reports findings
	dryRun bool // show the change list without exporting
}

func (o *editOpts) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.yes, "yes", "y", false, "export even when validation reports findings")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "show the resulting changes without exporting")
}

// edit loads key, applies fn and then exports or, on a dry run, prints the
// changes.
func (c *CLI) edit(ctx context.Context, key string, opts editOpts, fn func(*session) error) error {
	s, err := c.openSession(ctx, key)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := fn(s); err != nil {
		return err
	}
	if opts.dryRun {
		changes, err := s.svc.DiffAgainstOriginal(ctx)
		if err != nil {
			return err
		}
		printChanges(c.out, changes)
		return nil
	}
	return c.export(ctx, s, opts.yes)
}

func (c *CLI) renameCommand() *cobra.Command {
	var opts editOpts
	cmd := &cobra.Command{
		Use:   "rename KEY KIND CODE NEW_CODE",
		Short: "Rename an entity and rewrite every reference to it",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, err := parseKind(args[1])
			if err != nil {
				return err
			}
			return c.edit(ctx, args[0], opts, func(s *session) error {
				refs, err := s.svc.PreviewRename(ctx, kind, args[2], args[3])
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, styleTitle.Render(fmt.Sprintf("References (%d)", len(refs))))
				printLocations(c.out, refs)
				_, err = s.svc.CommitRename(ctx, kind, args[2], args[3])
				return err
			})
		},
	}
	opts.register(cmd)
	return cmd
}

func (c *CLI) linkCommand() *cobra.Command {
	var opts editOpts
	cmd := &cobra.Command{
		Use:   "link KEY KIND PARENT CHILD...",
		Short: "Attach children to a marketplace or group",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, err := parseKind(args[1])
			if err != nil {
				return err
			}
			return c.edit(ctx, args[0], opts, func(s *session) error {
				_, err := s.svc.Link(ctx, kind, args[2], args[3:])
				return err
			})
		},
	}
	opts.register(cmd)
	return cmd
}

func (c *CLI) unlinkCommand() *cobra.Command {
	var opts editOpts
	cmd := &cobra.Command{
		Use:   "unlink KEY KIND PARENT CHILD",
		Short: "Detach one child from a marketplace or group",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, err := parseKind(args[1])
			if err != nil {
				return err
			}
			return c.edit(ctx, args[0], opts, func(s *session) error {
				_, err := s.svc.Unlink(ctx, kind, args[2], args[3])
				return err
			})
		},
	}
	opts.register(cmd)
	return cmd
}

// parseSets reads key=value pairs. Values that parse as JSON keep their
// type; anything else is stored as a string.
func parseSets(attrs *domain.Attributes, sets []string) error {
	for _, set := range sets {
		key, value, ok := strings.Cut(set, "=")
		if !ok || key == "" {
			return fmt.Errorf("set %q: expected key=value", set)
		}
		var err error
		if json.Valid([]byte(value)) {
			err = attrs.SetRaw(key, json.RawMessage(value))
		} else {
			err = attrs.Set(key, value)
		}
		if err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func (c *CLI) createCommand() *cobra.Command {
	var (
		opts     editOpts
		name     string
		children []string
		sets     []string
	)
	cmd := &cobra.Command{
		Use:   "create KEY KIND CODE",
		Short: "Create an entity with kind defaults",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, err := parseKind(args[1])
			if err != nil {
				return err
			}
			var attrs domain.Attributes
			if name != "" {
				if err := attrs.Set(domain.FieldName, name); err != nil {
					return err
				}
			}
			if err := parseSets(&attrs, sets); err != nil {
				return err
			}
			return c.edit(ctx, args[0], opts, func(s *session) error {
				created, err := s.svc.CreateEntity(ctx, kind, mutate.Draft{Code: args[2], Attributes: attrs, Children: children})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s %s %s\n", styleSuccess.Render("created"), kind, styleCode.Render(created.EntityCode()))
				return nil
			})
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringArrayVar(&children, "child", nil, "child code to link (repeatable)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "attribute key=value, value as JSON when valid (repeatable)")
	return cmd
}

func (c *CLI) cloneCommand() *cobra.Command {
	var (
		opts    editOpts
		parents []string
		sets    []string
	)
	cmd := &cobra.Command{
		Use:   "clone KEY KIND CODE NEW_CODE",
		Short: "Copy a shared group or widget for selected parents only",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, err := parseKind(args[1])
			if err != nil {
				return err
			}
			if len(parents) == 0 {
				return fmt.Errorf("clone needs at least one --parent")
			}
			return c.edit(ctx, args[0], opts, func(s *session) error {
				current, ok := s.svc.GetByCode(kind, args[2])
				if !ok {
					return domain.NotFoundError{Kind: kind, Code: args[2]}
				}
				edited := domain.WithCode(current, args[3])
				attrs := domain.AttributesOf(edited)
				if err := parseSets(&attrs, sets); err != nil {
					return err
				}
				switch e := edited.(type) {
				case domain.Group:
					e.Attributes = attrs
					edited = e
				case domain.Widget:
					e.Attributes = attrs
					edited = e
				}
				_, err := s.svc.CloneForParents(ctx, args[2], edited, parents)
				return err
			})
		},
	}
	opts.register(cmd)
	cmd.Flags().StringArrayVar(&parents, "parent", nil, "parent code to repoint at the clone (repeatable)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "attribute key=value applied to the clone (repeatable)")
	return cmd
}

func (c *CLI) exportCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "export KEY",
		Short: "Review and write a canonical copy of a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.openSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			return c.export(ctx, s, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "export even when validation reports findings")
	return cmd
}
