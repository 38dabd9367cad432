// Copyright 2025 Canarygate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package launcher

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	libconfig "github.com/canarygate/canarygate/private/config"
)

// newCommandTemplate returns a cobra command template for a canarygate server
// application.
func newCommandTemplate(
	executable string,
	shortName string,
	cfg libconfig.Sampler,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:           executable,
		Short:         shortName,
		Example:       fmt.Sprintf("  %s --config %s", executable, "config.toml"),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.AddCommand(
		newSample(cfg),
		newVersion(shortName),
	)
	cmd.Flags().String(cfgConfigFile, "", "Configuration file (required)")
	cmd.MarkFlagRequired(cfgConfigFile)
	return cmd
}

func newSample(cfg libconfig.Sampler) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Display sample files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Display sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Sample(os.Stdout, nil, nil)
			return nil
		},
	})
	return cmd
}

func newVersion(shortName string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, revision := "unknown", "unknown"
			if info, ok := debug.ReadBuildInfo(); ok {
				version = info.Main.Version
				for _, s := range info.Settings {
					if s.Key == "vcs.revision" {
						revision = s.Value
					}
				}
			}
			fmt.Printf("%s %s (revision %s)\n", shortName, version, revision)
			return nil
		},
	}
}
