package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/feedstore/internal/feeddb"
	"github.com/roach88/feedstore/internal/ident"
	"github.com/roach88/feedstore/internal/model"
)

// StatsResult is the payload of `feedstore stats`.
type StatsResult struct {
	feeddb.Stats
	LogEntries  int64 `json:"log_entries"`
	Checkpoints int64 `json:"checkpoints"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count categories, feeds, items and log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, runStats)
		},
	}
}

func runStats(ctx context.Context, s *session) error {
	st, err := s.db.Stats(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read stats", err)
	}
	counts, err := s.db.LogCounts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count log entries", err)
	}
	res := StatsResult{Stats: st, LogEntries: counts.Entries, Checkpoints: counts.Checkpoints}
	return s.out.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "categories\t%d\n", res.Categories)
		fmt.Fprintf(w, "feeds\t%d\n", res.Feeds)
		fmt.Fprintf(w, "items\t%d\n", res.Items)
		fmt.Fprintf(w, "log entries\t%d\n", res.LogEntries)
		fmt.Fprintf(w, "checkpoints\t%d\n", res.Checkpoints)
	})
}

// NewCategoriesCommand creates the categories command.
func NewCategoriesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, runCategories)
		},
	}
}

func runCategories(ctx context.Context, s *session) error {
	cats, err := s.db.ListCategories(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list categories", err)
	}
	feeds, err := s.db.ListFeeds(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list feeds", err)
	}
	perCat := make(map[ident.ID]int)
	for _, f := range feeds {
		if cat, ok := f.InCategory(); ok {
			perCat[cat]++
		}
	}

	views := make([]CategoryView, 0, len(cats))
	for _, c := range cats {
		views = append(views, CategoryView{ID: c.ID, Name: c.Name, Feeds: perCat[c.ID]})
	}
	return s.out.Success(views, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tFEEDS")
		for _, v := range views {
			fmt.Fprintf(w, "%d\t%s\t%d\n", v.ID, v.Name, v.Feeds)
		}
	})
}

// FeedsOptions holds flags for the feeds command.
type FeedsOptions struct {
	*RootOptions
	Category string
}

// NewFeedsCommand creates the feeds command.
func NewFeedsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeedsOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "List feeds in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				return runFeeds(ctx, s, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Category, "category", "", "only feeds in this category")
	return cmd
}

func runFeeds(ctx context.Context, s *session, opts *FeedsOptions) error {
	cats, err := s.db.ListCategories(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list categories", err)
	}
	names := make(map[ident.ID]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	feeds, err := s.db.ListFeeds(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list feeds", err)
	}

	views := make([]FeedView, 0, len(feeds))
	for _, f := range feeds {
		v := feedView(f, names)
		if opts.Category != "" && v.Category != opts.Category {
			continue
		}
		views = append(views, v)
	}
	return s.out.Success(views, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tSTATUS\tCATEGORY\tURL\tTITLE")
		for _, v := range views {
			cat := v.Category
			if cat == "" {
				cat = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", v.ID, v.Status, cat, v.URL, v.Title)
		}
	})
}

// ItemsOptions holds flags for the items command.
type ItemsOptions struct {
	*RootOptions
	FeedURL  string
	Category string
	After    int64
	Limit    int
}

// NewItemsCommand creates the items command.
func NewItemsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemsOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List items in update-time order",
		Long: `List items ordered by id, which is update-time order.

Without filters, items are paged through the whole store: --after is the
id to start from (inclusive) and --limit the page size. With --feed or
--category, every item filed under that feed or category is listed.

Examples:
  feedstore items --limit 20
  feedstore items --after 1714557600000000001 --limit 20
  feedstore items --feed http://a.example/feed
  feedstore items --category Tech --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.FeedURL != "" && opts.Category != "" {
				return NewExitError(ExitCommandError, "--feed and --category are mutually exclusive")
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				return runItems(ctx, s, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.FeedURL, "feed", "", "only items of the feed with this URL")
	cmd.Flags().StringVar(&opts.Category, "category", "", "only items of feeds in this category")
	cmd.Flags().Int64Var(&opts.After, "after", 1, "first item id to list when paging")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "page size when paging (0 = all)")
	return cmd
}

func runItems(ctx context.Context, s *session, opts *ItemsOptions) error {
	var (
		items []model.Item
		err   error
	)
	switch {
	case opts.FeedURL != "":
		m, found, ferr := s.db.FindUniqueByKey(ctx, feeddb.TableFeeds, opts.FeedURL)
		if ferr != nil {
			return WrapExitError(ExitCommandError, "failed to find feed", ferr)
		}
		if !found {
			return NewExitError(ExitCommandError, fmt.Sprintf("no feed with url %s", opts.FeedURL))
		}
		items, err = s.db.ItemsByFeed(ctx, m.ID)
	case opts.Category != "":
		m, found, ferr := s.db.FindUniqueByKey(ctx, feeddb.TableCategories, opts.Category)
		if ferr != nil {
			return WrapExitError(ExitCommandError, "failed to find category", ferr)
		}
		if !found {
			return NewExitError(ExitCommandError, fmt.Sprintf("no category named %q", opts.Category))
		}
		items, err = s.db.ItemsByCategory(ctx, m.ID)
	default:
		items, err = s.db.ItemsFrom(ctx, ident.ID(opts.After), opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list items", err)
	}

	views := make([]ItemView, 0, len(items))
	for _, it := range items {
		views = append(views, itemView(it))
	}
	return s.out.Success(views, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tUPDATED\tKIND\tTITLE")
		for _, v := range views {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", v.ID, v.UpdatedAt.Format(time.RFC3339), v.Kind, v.Title)
		}
	})
}
