package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rpattn/travelcms/internal/config"
	"github.com/rpattn/travelcms/internal/templates"

	"github.com/spf13/cobra"
)

func newTemplateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Inspect the post template catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List available templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := loadRegistry(*configPath)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tREQUIRED")
			for _, tpl := range registry.List() {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", tpl.ID, tpl.Name, len(tpl.RequiredFields))
			}
			return tw.Flush()
		},
	}

	var (
		format string
		out    string
	)
	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Write the upload template file for a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(*configPath)
			if err != nil {
				return err
			}
			tpl, err := registry.Get(args[0])
			if err != nil {
				return err
			}

			var data []byte
			switch format {
			case "csv":
				data, err = templates.BuildTemplateCSV(tpl)
			case "xlsx":
				data, err = templates.BuildTemplateXLSX(tpl)
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			_, err = w.Write(data)
			return err
		},
	}
	export.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	export.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	cmd.AddCommand(list, export)
	return cmd
}

func loadRegistry(configPath string) (*templates.Registry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return templates.LoadDir(cfg.Templates.Dir)
}
