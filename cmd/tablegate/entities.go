package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	apihttp "github.com/artpar/tablegate/adapters/http"
	"github.com/artpar/tablegate/app"
	"github.com/artpar/tablegate/bootstrap"
	"github.com/artpar/tablegate/domain/entity"
	"github.com/spf13/cobra"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Inspect and define entities",
	Long: `Inspect and define the entities served by tablegate.

A running server picks up entities defined here on its next listener
restart, for example after a config reload. POST /types applies at once.

Examples:
  tablegate entities list
  tablegate entities list --json
  tablegate entities define post title:TEXT body:TEXT`,
}

var entitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the route table built from the database",
	RunE:  runEntitiesList,
}

var entitiesDefineCmd = &cobra.Command{
	Use:   "define <name> <field:type>...",
	Short: "Create a table for a new entity",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runEntitiesDefine,
}

var entitiesJSON bool

func init() {
	rootCmd.AddCommand(entitiesCmd)
	entitiesCmd.AddCommand(entitiesListCmd)
	entitiesCmd.AddCommand(entitiesDefineCmd)

	entitiesListCmd.Flags().BoolVar(&entitiesJSON, "json", false, "output as JSON")
}

func openStore() (*bootstrap.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.OpenStore(cfg.Database, cliLogger())
}

func runEntitiesList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	table, err := app.NewRouteBuilder(st.Schema, cliLogger()).Build(context.Background())
	if err != nil {
		return fmt.Errorf("build route table: %w", err)
	}

	out := cmd.OutOrStdout()
	if entitiesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(apihttp.NewRoutesResponse(table))
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tTARGET\tENTITY")
	for _, b := range table.Bindings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Method, b.Path, b.Target, b.Entity)
	}
	w.Flush()

	if len(table.Rejected) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Rejected:")
		for _, r := range table.Rejected {
			fmt.Fprintf(out, "  %s: %s\n", r.Entity, r.Reason)
		}
	}
	return nil
}

func runEntitiesDefine(cmd *cobra.Command, args []string) error {
	fields, err := parseFieldArgs(args[1:])
	if err != nil {
		return err
	}
	def := entity.Definition{Name: args[0], Fields: fields}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stmt, err := app.NewSchemaService(st.Schema, nil, cliLogger()).Define(context.Background(), def)
	if err != nil {
		if stmt != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), stmt)
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), stmt)
	return nil
}

// parseFieldArgs parses name:type arguments. The type may itself contain
// colons or spaces.
func parseFieldArgs(args []string) (entity.Fields, error) {
	fields := make(entity.Fields, 0, len(args))
	for _, arg := range args {
		name, typ, ok := strings.Cut(arg, ":")
		if !ok || name == "" || strings.TrimSpace(typ) == "" {
			return nil, fmt.Errorf("field must be name:type, got %q", arg)
		}
		fields = append(fields, entity.Field{Name: name, Type: typ})
	}
	return fields, nil
}
