package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"deodexer/internal/config"
	"deodexer/internal/toolfetch"
)

func newFetchToolCommand() *cobra.Command {
	var dir string
	var repo string
	var match string
	var apiURL string
	var noProgress bool

	cmd := &cobra.Command{
		Use:         "fetch-tool",
		Short:       "Download the latest baksmali jar from GitHub releases",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := config.ExpandPath(dir)
			if err != nil {
				return fmt.Errorf("resolve --dir: %w", err)
			}
			client, err := toolfetch.New(toolfetch.Config{
				BaseURL:   apiURL,
				Repo:      repo,
				UserAgent: "deodexer/" + version,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Fetching latest release information...")
			release, err := client.LatestRelease(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Latest release: %s\n", release.TagName)
			asset, err := toolfetch.SelectJar(release, match)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Downloading %s (%s)\n", asset.Name, humanBytes(asset.Size))

			var progress toolfetch.ProgressFunc
			if !noProgress && shouldColorize(cmd.ErrOrStderr()) {
				progress = func(total int64) io.Writer {
					return progressbar.DefaultBytes(total, "downloading")
				}
			}
			path, err := client.Download(cmd.Context(), asset, target, progress)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Downloaded %s\n", path)
			fmt.Fprintf(out, "Use it with: deodexer run --tool %s, or set tool.jar_path in the config file\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "tools", "Directory to save the jar into")
	cmd.Flags().StringVar(&repo, "repo", "JesusFreke/smali", "GitHub repository (owner/name) to fetch from")
	cmd.Flags().StringVar(&match, "asset", toolfetch.DefaultAsset, "Substring identifying the jar asset")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "GitHub API base URL")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the download progress bar")
	_ = cmd.Flags().MarkHidden("api-url")
	return cmd
}
