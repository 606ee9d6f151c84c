package commands

import (
	"io"

	"github.com/spf13/cobra"
)

func newPlatformCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "platform",
		Aliases: []string{"platforms"},
		Short:   "Inspect the platform catalogue",
	}

	cmd.AddCommand(newPlatformListCommand())
	return cmd
}

type platformEntry struct {
	Name           string `json:"name" yaml:"name"`
	Default        bool   `json:"default" yaml:"default"`
	Realm          string `json:"realm" yaml:"realm"`
	Console        string `json:"console" yaml:"console"`
	RestAPI        string `json:"rest-api" yaml:"rest-api"`
	AccessToken    string `json:"access-token" yaml:"access-token"`
	PublicDomain   string `json:"public-domain" yaml:"public-domain"`
	InternalDomain string `json:"internal-domain" yaml:"internal-domain"`
}

func newPlatformListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured platforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			// Without a resolvable default no platform is marked.
			selected, err := settings.Platform(platformName)
			if err != nil && platformName != "" {
				return err
			}

			entries := make([]platformEntry, len(settings.Platforms))
			for i, p := range settings.Platforms {
				entries[i] = platformEntry{
					Name:           p.Name,
					Default:        p.Name == selected.Name,
					Realm:          p.Realm,
					Console:        p.Console(),
					RestAPI:        p.RestAPI(),
					AccessToken:    p.AccessToken(),
					PublicDomain:   p.PublicDomain,
					InternalDomain: p.InternalDomain,
				}
			}

			return render(cmd, entries, func(w io.Writer) {
				row(w, "", "NAME", "REALM", "CONSOLE", "API")
				for _, e := range entries {
					marker := ""
					if e.Default {
						marker = "*"
					}
					row(w, marker, e.Name, e.Realm, e.Console, e.RestAPI)
				}
			})
		},
	}
}
