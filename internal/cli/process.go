package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"chatwidget/internal/domain/models"
)

func newProcessCmd(a *app) *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "process <content|->",
		Short: "Detect, convert and sanitize content, printing the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			var override *models.ContentType
			if typeName != "" {
				t, err := models.ParseContentType(typeName)
				if err != nil {
					return err
				}
				override = &t
			}

			processed, err := a.processor.ProcessContent(cmd.Context(), input, override)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(processed)
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "Force the content type (html, markdown or text)")
	return cmd
}

func newSanitizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize <html|->",
		Short: "Sanitize HTML with the widget allowlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), a.sanitizer.Sanitize(input))
			return err
		},
	}
}

func newMarkdownCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "markdown <text|->",
		Short: "Convert markdown to HTML with the configured engine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), a.renderer.ToHTML(input))
			return err
		},
	}
}

func newPresetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the response presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range a.catalogue.Names() {
				p, err := a.catalogue.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-14s %2d chunks  %s\n", p.Name, len(p.Chunks), p.Description)
			}
			return nil
		},
	}
}
