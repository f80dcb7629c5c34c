// Package cli implements catalogctl, a command-line host for the catalog
// editing core.
//
// Documents are addressed as keys in the configured source (a directory, an
// S3 bucket, or memory). Editing commands load a document, apply one
// operation, show the export review and write the result under the key
// plus the configured export suffix.
//
// # Logging
//
// The --verbose flag switches the logger to debug level. The logger travels
// through context.Context to every command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"catalogcore/internal/config"
	"catalogcore/internal/core"
	"catalogcore/internal/journal"
	"catalogcore/internal/observability"
	"catalogcore/internal/source"
	"catalogcore/internal/validate"
	"catalogcore/pkg/domain"
)

// LogInfo is the default level used by main.go.
const LogInfo = log.InfoLevel

// CLI holds state shared by all commands.
type CLI struct {
	Logger  *log.Logger
	out     io.Writer
	cfg     config.Config
	metrics *observability.PrometheusRecorder

	configPath  string
	verbose     bool
	showMetrics bool
}

// New returns a CLI printing results to out and logs to logw.
func New(out, logw io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:  newLogger(logw, level),
		out:     out,
		cfg:     config.Default(),
		metrics: observability.NewPrometheusRecorder(nil),
	}
}

// RootCommand builds the catalogctl command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "catalogctl inspects and edits marketplace catalogs",
		Long:          `catalogctl loads a marketplace/group/widget catalog document, validates its references, and applies edits that keep every reference consistent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.showMetrics {
				return c.writeMetrics()
			}
			return nil
		},
	}
	root.SetOut(c.out)
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVar(&c.showMetrics, "metrics", false, "print operation metrics after the command")

	root.AddCommand(c.validateCommand())
	root.AddCommand(c.diffCommand())
	root.AddCommand(c.expandCommand())
	root.AddCommand(c.filterCommand())
	root.AddCommand(c.renameCommand())
	root.AddCommand(c.linkCommand())
	root.AddCommand(c.unlinkCommand())
	root.AddCommand(c.createCommand())
	root.AddCommand(c.cloneCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.journalCommand())
	return root
}

func (c *CLI) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.verbose {
		level = log.DebugLevel
	}
	c.Logger.SetLevel(level)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, c.Logger))
	c.Logger.Debug("configuration loaded", "source", cfg.Source.Driver, "journal", cfg.Journal.Driver)
	return nil
}

func (c *CLI) writeMetrics() error {
	families, err := c.metrics.Registry().Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(c.out, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// FormatError renders err with its domain error code.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("error [%s]: %v", domain.CodeOf(err), err)
}

// session is one loaded document plus the stores it was read from and
// exports to.
type session struct {
	svc     *core.Service
	src     source.Store
	journal journal.Journal
	key     string
}

func (s *session) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

func (c *CLI) newService(ctx context.Context, j journal.Journal) (*core.Service, error) {
	logger := loggerFromContext(ctx)
	schema, err := validate.LoadSchemaFile(c.cfg.Schema.File)
	if err != nil {
		return nil, err
	}
	v, err := validate.New(validate.WithSchema(schema))
	if err != nil {
		return nil, err
	}
	opts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithValidator(v),
		core.WithMetricsRecorder(c.metrics),
		core.WithAuditRecorder(core.LogAuditRecorder{Logger: logger}),
	}
	if j != nil {
		opts = append(opts, core.WithJournal(j))
	}
	return core.NewService(opts...)
}

// openSession loads key from the configured source.
func (c *CLI) openSession(ctx context.Context, key string) (*session, error) {
	src, err := source.Open(ctx, c.cfg.Source)
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(ctx, c.cfg.Journal)
	if err != nil {
		return nil, err
	}
	svc, err := c.newService(ctx, j)
	if err != nil {
		_ = j.Close()
		return nil, err
	}
	p := newProgress(loggerFromContext(ctx))
	data, err := source.ReadAll(ctx, src, key)
	if err != nil {
		_ = j.Close()
		return nil, err
	}
	if err := svc.Load(ctx, data); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	p.done("document loaded", "key", key, "bytes", len(data))
	return &session{svc: svc, src: src, journal: j, key: key}, nil
}

// exportKey names the export of key: catalog.json becomes
// catalog<suffix>.
func exportKey(key, suffix string) string {
	return strings.TrimSuffix(key, ".json") + suffix
}

var errFindings = errors.New("export refused: validation reported findings (rerun with --yes to export anyway)")

// export shows the review for s and writes it unless findings exist and
// the operator did not confirm.
func (c *CLI) export(ctx context.Context, s *session, confirmed bool) error {
	review, err := s.svc.ReviewExport(ctx)
	if err != nil {
		return err
	}
	printReport(c.out, review.Report)
	printChanges(c.out, review.Changes)
	if review.HasFindings() && !confirmed {
		return errFindings
	}
	target := exportKey(s.key, c.cfg.Export.Suffix)
	entry, err := s.svc.ConfirmExport(ctx, review, s.src, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s (%d bytes)\n", styleSuccess.Render("exported"), styleCode.Render(target), entry.Size)
	return nil
}

func parseKind(s string) (domain.EntityType, error) {
	return domain.ParseEntityType(s)
}
