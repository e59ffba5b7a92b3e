package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/services/autofill"
)

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "classify the form fields of a page",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "page URL; rendered in the browser unless --file is given"},
			&cli.StringFlag{Name: "file", Usage: "read page markup from a local HTML file"},
			&cli.BoolFlag{Name: "smart", Usage: "sanitize the page and send it to the configured model"},
		},
		Action: func(c *cli.Context) error {
			html, err := readHTML(c.String("file"))
			if err != nil {
				return err
			}
			if html == "" && c.String("url") == "" {
				return fmt.Errorf("one of --url or --file is required")
			}

			rt, err := newRuntime(c, html == "")
			if err != nil {
				return err
			}
			defer rt.Close()

			stop := spin("Analyzing...")
			var result *domain.AnalysisResult
			if c.Bool("smart") {
				result, err = rt.service.SmartAnalyze(c.Context, autofill.ContentRequest{URL: c.String("url"), HTML: html})
			} else {
				result, err = rt.service.AnalyzePage(c.Context, autofill.AnalyzeRequest{URL: c.String("url"), HTML: html})
			}
			stop()
			if err != nil {
				return describe(err)
			}

			if c.Bool("json") {
				return printJSON(result)
			}
			printAnalysis(result)
			return nil
		},
	}
}

func sanitizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "sanitize",
		Usage:     "reduce a page to the markup a model would see",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "URL recorded with the content"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected one HTML file")
			}
			html, err := readHTML(c.Args().First())
			if err != nil {
				return err
			}

			rt, err := newRuntime(c, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.service.ExtractContent(c.Context, autofill.ContentRequest{URL: c.String("url"), HTML: html})
			if err != nil {
				return describe(err)
			}

			if c.Bool("json") {
				return printJSON(res)
			}
			fmt.Println(res.Content.HTML)
			st := res.Content.Stats
			dim.Fprintf(os.Stderr, "%d -> %d chars, ~%d tokens, %d forms, %d inputs, page type %s\n",
				st.OriginalSize, st.CleanedSize, st.EstimatedTokens, st.FormCount, st.InputCount, res.Content.PageType)
			if res.Truncated {
				yellow.Fprintln(os.Stderr, "content was truncated")
			}
			return nil
		},
	}
}

func parseProfileCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse-profile",
		Usage:     "show the values extracted from a saved profile",
		ArgsUsage: "NAME",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected a profile name")
			}

			rt, err := newRuntime(c, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			info, err := rt.service.ParseProfile(c.Context, c.Args().First())
			if err != nil {
				return describe(err)
			}

			if c.Bool("json") {
				return printJSON(info)
			}
			labels := make([]string, 0, len(info.Values))
			for l := range info.Values {
				labels = append(labels, string(l))
			}
			sort.Strings(labels)
			for _, l := range labels {
				value := info.Values[domain.SemanticLabel(l)]
				if domain.SemanticLabel(l).IsSecret() {
					value = mask(value)
				}
				fmt.Printf("  %-16s %s\n", bold.Sprint(l), value)
			}
			return nil
		},
	}
}

func fillCommand() *cli.Command {
	return &cli.Command{
		Name:  "fill",
		Usage: "analyze a live page and fill it from a profile",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Required: true},
			&cli.StringFlag{Name: "profile", Required: true, Usage: "saved profile name"},
		},
		Action: func(c *cli.Context) error {
			rt, err := newRuntime(c, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			stop := spin("Filling...")
			out, err := rt.service.Autofill(c.Context, autofill.AutofillRequest{
				URL:         c.String("url"),
				ProfileName: c.String("profile"),
			})
			stop()
			if err != nil {
				return describe(err)
			}

			if c.Bool("json") {
				return printJSON(out)
			}
			if out.Analysis != nil {
				printAnalysis(out.Analysis)
			}
			printReport(out.Fill, out.Report)
			return nil
		},
	}
}

func readHTML(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// describe turns a pipeline error into a one-line message with its code.
func describe(err error) error {
	if appErr, ok := domain.AsAppError(err); ok {
		return fmt.Errorf("%s: %s", appErr.Code, appErr.Message)
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAnalysis(r *domain.AnalysisResult) {
	cyan.Printf("%s page, %s form, %d fields (confidence %.2f, source %s)\n",
		r.PageType, r.FormType, r.TotalFields, r.Confidence, r.Source)
	if r.Fallback {
		yellow.Printf("  fell back to local analysis: %s\n", r.FallbackReason)
	}
	for _, form := range r.Forms {
		bold.Printf("  form #%d %s\n", form.Index, form.FormType)
		for _, f := range form.Fields {
			label := string(f.SemanticLabel)
			if f.SemanticLabel == domain.LabelUnknown {
				label = dim.Sprint(label)
			} else {
				label = green.Sprint(label)
			}
			fmt.Printf("    %-32s %-10s %s\n", f.Selector, f.Type, label)
		}
	}
}

func printReport(fill *domain.FillResult, report domain.FillReport) {
	if fill != nil && fill.Fallback {
		yellow.Printf("  fill values came from the local parser: %s\n", fill.FallbackReason)
	}
	for _, res := range report.Results {
		if res.Status == domain.FieldSuccess {
			green.Printf("  ✓ %s\n", res.Selector)
			continue
		}
		red.Printf("  ✗ %s: %s\n", res.Selector, res.Error)
	}
	bold.Printf("%d/%d fields filled\n", report.SuccessCount, report.TotalFields)
}

func mask(s string) string {
	if s == "" {
		return s
	}
	return "********"
}
