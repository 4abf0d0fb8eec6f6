package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lystaria/site-service/internal/announce"
	"github.com/lystaria/site-service/internal/changeset"
	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/logging"
)

func newRootCmd() *cobra.Command {
	var (
		endpoint     string
		secret       string
		siteURL      string
		contentDirs  string
		pushEndpoint string
		pushSecret   string
		changedFiles string
		repoPath     string
		retryCount   int
	)

	cmd := &cobra.Command{
		Use:   "announce <before-sha> <after-sha>",
		Short: "Announce new and updated content",
		Long: `announce finds markdown files added or modified between two revisions
under the configured content directories and posts one announcement per file
to the receiver, optionally followed by a push notification.

Every flag falls back to its environment variable.

Example usage:
  announce $BEFORE $AFTER
  CHANGED_FILES="$(git diff --name-only $BEFORE $AFTER)" announce $BEFORE $AFTER`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.AnnouncerFromEnv()

			flags := cmd.Flags()
			override := func(name string, dst *string, value string) {
				if flags.Changed(name) {
					*dst = value
				}
			}
			override("endpoint", &cfg.Endpoint, endpoint)
			override("secret", &cfg.Secret, secret)
			override("site-url", &cfg.SiteURL, strings.TrimRight(siteURL, "/"))
			override("content-dirs", &cfg.ContentDirs, contentDirs)
			override("push-endpoint", &cfg.PushEndpoint, pushEndpoint)
			override("push-secret", &cfg.PushSecret, pushSecret)
			override("changed-files", &cfg.ChangedFiles, changedFiles)
			override("repo", &cfg.RepoPath, repoPath)
			if flags.Changed("retries") {
				cfg.RetryCount = retryCount
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
			dirs := cfg.Dirs()
			dirNames := make([]string, len(dirs))
			for i, d := range dirs {
				dirNames[i] = d.Dir
			}

			resolver, err := newResolver(cfg, dirNames)
			if err != nil {
				return err
			}

			root, err := filepath.Abs(cfg.RepoPath)
			if err != nil {
				return fmt.Errorf("failed to resolve repo path: %w", err)
			}

			announcer := announce.NewAnnouncer(announce.Options{
				Endpoint:      cfg.Endpoint,
				Secret:        cfg.Secret,
				PushEndpoint:  cfg.PushEndpoint,
				PushSecret:    cfg.PushSecret,
				RetryCount:    cfg.RetryCount,
				RetryInterval: cfg.RetryInterval,
			}, resolver, os.DirFS(root), announce.NewBuilder(cfg.SiteURL, dirs, logger), announce.NewClient(cfg.Timeout), logger)

			summary, err := announcer.Run(cmd.Context(), args[0], args[1])
			logger.Info("announce finished",
				"changed", summary.Changed,
				"delivered", summary.Delivered,
				"deduped", summary.Deduped,
				"skipped", summary.Skipped,
				"failed", summary.Failed,
			)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&endpoint, "endpoint", "", "receiver URL (ANNOUNCE_ENDPOINT)")
	flags.StringVar(&secret, "secret", "", "receiver shared secret (ANNOUNCE_SECRET)")
	flags.StringVar(&siteURL, "site-url", "", "public site base URL (SITE_URL)")
	flags.StringVar(&contentDirs, "content-dirs", "", "dir=prefix[,dir=prefix] (CONTENT_DIRS)")
	flags.StringVar(&pushEndpoint, "push-endpoint", "", "push dispatcher URL (PUSH_WEBHOOK_URL)")
	flags.StringVar(&pushSecret, "push-secret", "", "push dispatcher bearer token (PUSH_WEBHOOK_SECRET)")
	flags.StringVar(&changedFiles, "changed-files", "", "newline-separated changed paths; skips git (CHANGED_FILES)")
	flags.StringVar(&repoPath, "repo", "", "repository checkout (REPO_PATH)")
	flags.IntVar(&retryCount, "retries", 0, "delivery attempts per file (RETRY_COUNT)")

	return cmd
}

// newResolver prefers a precomputed file list and otherwise diffs the
// checkout with git.
func newResolver(cfg config.AnnouncerConfig, dirs []string) (changeset.Resolver, error) {
	if strings.TrimSpace(cfg.ChangedFiles) != "" {
		return changeset.NewListResolver(cfg.ChangedFiles, dirs), nil
	}
	resolver, err := changeset.OpenGitResolver(cfg.RepoPath, dirs)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return resolver, nil
}
