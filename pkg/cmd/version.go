package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rollkit/sequencer-relayer/types"
)

var (
	// GitSHA is set at build time. When empty the VCS revision embedded by
	// the Go toolchain is used.
	GitSHA string

	// Version is set at build time
	Version string
)

const flagVersionOutput = "output"

// VersionInfo is what the version command reports.
type VersionInfo struct {
	Version     string `json:"version"`
	GitSHA      string `json:"git_sha"`
	GoVersion   string `json:"go_version"`
	BlobVersion uint16 `json:"blob_version"`
}

// BuildVersionInfo collects the version of the running binary.
func BuildVersionInfo() (VersionInfo, error) {
	if Version == "" {
		return VersionInfo{}, errors.New("version not set")
	}
	sha := GitSHA
	if sha == "" {
		sha = vcsRevision()
	}
	if sha == "" {
		return VersionInfo{}, errors.New("git SHA not set")
	}
	return VersionInfo{
		Version:     Version,
		GitSHA:      sha,
		GoVersion:   runtime.Version(),
		BlobVersion: types.BlobVersion,
	}, nil
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// NewVersionCmd returns the command printing the relayer version.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := BuildVersionInfo()
			if err != nil {
				return err
			}
			output, err := cmd.Flags().GetString(flagVersionOutput)
			if err != nil {
				return err
			}
			switch output {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case "text":
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 0, 2, ' ', 0)
				_, err1 := fmt.Fprintf(w, "\nsequencer-relayer version:\t%v\n", info.Version)
				_, err2 := fmt.Fprintf(w, "sequencer-relayer git sha:\t%v\n", info.GitSHA)
				_, err3 := fmt.Fprintf(w, "go version:\t%v\n", info.GoVersion)
				_, err4 := fmt.Fprintf(w, "blob version:\t%d\n\n", info.BlobVersion)
				return errors.Join(err1, err2, err3, err4, w.Flush())
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}
	cmd.Flags().StringP(flagVersionOutput, "o", "text", "output format (text|json)")
	return cmd
}
