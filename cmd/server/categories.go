package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/prompt-library/internal/category"
	"github.com/sakif/prompt-library/internal/config"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Print the effective category table",
	Long: `Print the categories prompts are grouped into, in display order, with
the keywords that select each one. "all" and "pinned" always exist and
are listed first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cm, err := loadConfig()
		if err != nil {
			return err
		}
		return printCategories(cmd, category.New(cm.Get().Categories))
	},
}

func printCategories(cmd *cobra.Command, c *category.Classifier) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKEYWORDS")
	fmt.Fprintf(w, "%s\t(every prompt)\n", category.All)
	fmt.Fprintf(w, "%s\t(pinned prompts)\n", category.Pinned)
	for _, cat := range c.Table() {
		fmt.Fprintf(w, "%s\t%s\n", cat.Name, strings.Join(cat.Keywords, ", "))
	}
	return w.Flush()
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a config file with every default filled in",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}
