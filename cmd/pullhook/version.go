package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	// set with -ldflags
	gitCommit = "unknown"
	buildDate = "unknown"
)

type versionInfo struct {
	Version   string `yaml:"version"`
	GitCommit string `yaml:"git_commit"`
	BuildDate string `yaml:"build_date"`
	GoVersion string `yaml:"go_version"`
	Platform  string `yaml:"platform"`
}

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if versionShort {
		_, err := fmt.Fprintln(out, version)
		return err
	}

	info := versionInfo{
		Version:   version,
		GitCommit: gitCommit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	enc := yaml.NewEncoder(out)
	defer enc.Close()
	return enc.Encode(info)
}
