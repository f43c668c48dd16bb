package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/feedstore/internal/feeddb"
	"github.com/roach88/feedstore/internal/fetch"
	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
	"github.com/roach88/feedstore/internal/opml"
)

// AddFeedOptions holds flags for the add-feed command.
type AddFeedOptions struct {
	*RootOptions
	Category string
	Title    string
}

// NewAddFeedCommand creates the add-feed command.
func NewAddFeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddFeedOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "add-feed URL",
		Short: "Subscribe to a feed",
		Long: `Subscribe to the feed at URL, creating its category if needed. Adding a
feed that already exists updates its title and category.

Examples:
  feedstore add-feed http://a.example/feed
  feedstore add-feed http://a.example/feed --category Tech --title "A"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				return runAddFeed(ctx, s, opts, args[0])
			})
		},
	}
	cmd.Flags().StringVar(&opts.Category, "category", "", "category name")
	cmd.Flags().StringVar(&opts.Title, "title", "", "feed title (replaced by the feed's own title on refresh)")
	return cmd
}

func runAddFeed(ctx context.Context, s *session, opts *AddFeedOptions, url string) error {
	f := model.Feed{URL: url, Title: opts.Title}
	names := map[ident.ID]string{}
	if opts.Category != "" {
		c, err := s.db.InsertCategory(ctx, model.Category{Name: opts.Category})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create category", err)
		}
		f.CategoryID = model.IDPtr(c.ID)
		names[c.ID] = c.Name
	}

	// Keep fetch state when re-adding an existing feed.
	if m, found, err := s.db.FindUniqueByKey(ctx, feeddb.TableFeeds, url); err != nil {
		return WrapExitError(ExitCommandError, "failed to look up feed", err)
	} else if found {
		prev := m.Record.(model.Feed)
		f.LastError = prev.LastError
		f.UpdatedAt = prev.UpdatedAt
		f.Unsubscribed = prev.Unsubscribed
		if f.Title == "" {
			f.Title = prev.Title
		}
		if f.CategoryID == nil {
			f.CategoryID = prev.CategoryID
		}
	}
	if cat, ok := f.InCategory(); ok && names[cat] == "" {
		if c, found, err := s.db.LookupCategory(ctx, cat); err == nil && found {
			names[cat] = c.Name
		}
	}

	stored, err := s.db.InsertFeed(ctx, f)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to add feed", err)
	}
	v := feedView(stored, names)
	return s.out.Success(v, func(w io.Writer) {
		fmt.Fprintf(w, "added feed %d\t%s\n", v.ID, v.URL)
	})
}

// NewUnsubscribeCommand creates the unsubscribe command.
func NewUnsubscribeCommand(rootOpts *RootOptions) *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "unsubscribe URL",
		Short: "Stop refreshing a feed, keeping it and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				m, found, err := s.db.FindUniqueByKey(ctx, feeddb.TableFeeds, args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to look up feed", err)
				}
				if !found {
					return NewExitError(ExitCommandError, fmt.Sprintf("no feed with url %s", args[0]))
				}
				f, err := s.db.SetUnsubscribed(ctx, m.ID, !undo)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to update feed", err)
				}
				v := feedView(f, nil)
				return s.out.Success(v, func(w io.Writer) {
					fmt.Fprintf(w, "%s\t%s\n", v.URL, v.Status)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "resubscribe instead")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import subscriptions from an OPML file",
		Long: `Import subscriptions from an OPML file ("-" reads standard input).

Outlines without an xmlUrl become categories; feeds are filed under the
nearest enclosing category. Existing categories and feeds are reused, so
importing the same file twice changes nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closeFn, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				sum, err := opml.Import(ctx, s.db, r)
				if err != nil {
					return WrapExitError(ExitCommandError, "import failed", err)
				}
				return s.out.Success(sum, func(w io.Writer) {
					fmt.Fprintf(w, "categories\t%d created\t%d reused\n", sum.CategoriesCreated, sum.CategoriesReused)
					fmt.Fprintf(w, "feeds\t%d created\t%d reused\n", sum.FeedsCreated, sum.FeedsReused)
				})
			})
		},
	}
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open input", err)
	}
	return f, func() { f.Close() }, nil
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write subscribed feeds as OPML to standard output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if err := opml.Export(ctx, s.db, cmd.OutOrStdout(), title, time.Now()); err != nil {
					return WrapExitError(ExitCommandError, "export failed", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "feedstore subscriptions", "OPML head title")
	return cmd
}

// RefreshOptions holds flags for the refresh command.
type RefreshOptions struct {
	*RootOptions
	Strict bool
}

// RefreshResult is the payload of `feedstore refresh`.
type RefreshResult struct {
	Feeds    int             `json:"feeds"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Items    int             `json:"items"`
	Failures []RefreshFailed `json:"failures"`
}

// RefreshFailed names one feed that could not be refreshed.
type RefreshFailed struct {
	URL   string `json:"url"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RefreshOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch every subscribed feed and store new items",
		Long: `Fetch every subscribed feed, store its metadata and items, and record the
outcome on the feed. A failed fetch is stored on the feed as its last error;
the run continues with the other feeds.

Exit codes:
  0 - Refresh ran (some feeds may have failed)
  1 - Some feeds failed and --strict was given
  2 - Command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				return runRefresh(ctx, s, opts)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when any feed fails")
	return cmd
}

func runRefresh(ctx context.Context, s *session, opts *RefreshOptions) error {
	r := fetch.NewRefresher(s.db,
		fetch.NewFetcher(s.cfg.FetchOptions()),
		fetch.WithConcurrency(s.cfg.Fetch.Concurrency))

	sum, err := r.RefreshAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "refresh failed", err)
	}

	res := RefreshResult{
		Feeds:    sum.Feeds,
		Skipped:  sum.Skipped,
		Failed:   sum.Failed,
		Items:    sum.Items,
		Failures: []RefreshFailed{},
	}
	for _, fr := range sum.Results {
		if fr.Err == nil {
			continue
		}
		res.Failures = append(res.Failures, RefreshFailed{
			URL:   fr.URL,
			Kind:  fetch.KindOf(fr.Err).String(),
			Error: fr.Err.Error(),
		})
	}

	text := func(w io.Writer) {
		fmt.Fprintf(w, "refreshed %d feed(s), %d item(s) stored, %d skipped\n", res.Feeds-res.Failed, res.Items, res.Skipped)
		for _, f := range res.Failures {
			fmt.Fprintf(w, "failed\t%s\t%s\n", f.URL, f.Error)
		}
	}
	if opts.Strict && res.Failed > 0 {
		if err := s.out.Failure(CodeRefreshFail, fmt.Sprintf("%d feed(s) failed", res.Failed), res, text); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "refresh had failures")
	}
	return s.out.Success(res, text)
}
