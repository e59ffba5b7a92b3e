package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/store"
)

// profileFile is the YAML layout accepted by import and written by export.
type profileFile struct {
	Profiles []domain.Profile `yaml:"profiles"`
}

func profilesCommand() *cli.Command {
	return &cli.Command{
		Name:  "profiles",
		Usage: "manage saved profiles",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list saved profiles",
				Action: func(c *cli.Context) error {
					rt, err := newRuntime(c, false)
					if err != nil {
						return err
					}
					defer rt.Close()

					profiles, err := rt.store.Profiles(c.Context)
					if err != nil {
						return describe(err)
					}
					if c.Bool("json") {
						return printJSON(profiles)
					}
					if len(profiles) == 0 {
						dim.Println("no profiles saved")
						return nil
					}
					for _, p := range profiles {
						fmt.Printf("  %s  %s\n", bold.Sprint(p.Name), dim.Sprint(firstLine(p.Info, 60)))
					}
					return nil
				},
			},
			{
				Name:      "import",
				Usage:     "save every profile in a YAML file",
				ArgsUsage: "FILE",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected a YAML file")
					}
					rt, err := newRuntime(c, false)
					if err != nil {
						return err
					}
					defer rt.Close()

					n, err := importProfiles(c.Context, rt.store, c.Args().First())
					if err != nil {
						return err
					}
					green.Printf("imported %d profiles\n", n)
					return nil
				},
			},
			{
				Name:  "export",
				Usage: "write saved profiles as YAML",
				Action: func(c *cli.Context) error {
					rt, err := newRuntime(c, false)
					if err != nil {
						return err
					}
					defer rt.Close()

					profiles, err := rt.store.Profiles(c.Context)
					if err != nil {
						return describe(err)
					}
					enc := yaml.NewEncoder(os.Stdout)
					defer enc.Close()
					return enc.Encode(profileFile{Profiles: profiles})
				},
			},
		},
	}
}

// loadProfiles reads a YAML file holding either a bare list of profiles or
// a document with a profiles key.
func loadProfiles(path string) ([]domain.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var list []domain.Profile
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc profileFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc.Profiles, nil
}

func importProfiles(ctx context.Context, st *store.Store, path string) (int, error) {
	profiles, err := loadProfiles(path)
	if err != nil {
		return 0, err
	}
	for i, p := range profiles {
		if _, err := st.SaveProfile(ctx, p); err != nil {
			return i, fmt.Errorf("profile %d (%q): %w", i+1, p.Name, describe(err))
		}
	}
	return len(profiles), nil
}

func firstLine(s string, limit int) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i]
			break
		}
	}
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
