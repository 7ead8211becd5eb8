// Package cli is the acp-dues command line: the HTTP server plus the
// operator commands that run the same services without it.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"acp_dues/internal/access"
	"acp_dues/internal/logger"
)

type globalFlags struct {
	subject  string
	role     string
	verbose  bool
	jsonLogs bool
}

func (g *globalFlags) identity() (access.Identity, error) {
	id := access.System()
	if g.subject != "" {
		id.Subject = g.subject
	}
	if g.role != "" {
		id.Role = access.Role(g.role)
	}
	if !id.Role.Valid() {
		return access.Identity{}, fmt.Errorf("unknown role %q", g.role)
	}
	return id, nil
}

func (g *globalFlags) logger() zerolog.Logger {
	log := logger.New()
	if g.jsonLogs {
		log = logger.NewWithWriter(os.Stderr)
	}
	if g.verbose {
		return log.Level(zerolog.DebugLevel)
	}
	return log.Level(zerolog.InfoLevel)
}

// NewRootCommand builds the full command tree.
func NewRootCommand(version string) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "acp-dues",
		Short:         "Membership dues and bookkeeping for a parents association",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.subject, "as", "", "subject recorded on audited actions (default \"cli\")")
	root.PersistentFlags().StringVar(&g.role, "role", "", "role to act with: admin, operator or viewer (default admin)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&g.jsonLogs, "json-logs", false, "write JSON log lines to stderr")

	root.AddCommand(serveCmd(g))
	root.AddCommand(migrateCmd(g))
	root.AddCommand(duesCmd(g))
	root.AddCommand(remindersCmd(g))
	root.AddCommand(membersCmd(g))
	root.AddCommand(tokenCmd())
	return root
}

// Execute runs the command line and reports the error on stderr.
func Execute(version string) error {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
