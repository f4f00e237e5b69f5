package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVideosCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Query a user's videos",
	}
	var (
		user  string
		tags  []string
		pages pageFlags
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List the user's videos carrying every given tag (all tagged videos without --tag)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(user); err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(rt *runtime) error {
				page, err := rt.lib.GetVideosOfUser(cmd.Context(), user, pages.skip, pages.limit, tags)
				if err != nil {
					return fmt.Errorf("list videos: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	list.Flags().StringVar(&user, "user", "", "User id (required)")
	list.Flags().StringSliceVar(&tags, "tag", nil, "Required tag, repeatable or comma-separated")
	pages.register(list)
	cmd.AddCommand(list)
	return cmd
}

func newTagsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Query a user's tags",
	}
	cmd.AddCommand(newTagsListCmd(opts))
	cmd.AddCommand(newTagsOfCmd(opts))
	return cmd
}

func newTagsListCmd(opts *globalOptions) *cobra.Command {
	var (
		user     string
		contains string
		pages    pageFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the user's distinct tags, optionally filtered by substring",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(user); err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(rt *runtime) error {
				page, err := rt.lib.GetTagsOfUser(cmd.Context(), user, pages.skip, pages.limit, contains)
				if err != nil {
					return fmt.Errorf("list tags: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id (required)")
	cmd.Flags().StringVar(&contains, "contains", "", "Case-insensitive substring filter")
	pages.register(cmd)
	return cmd
}

func newTagsOfCmd(opts *globalOptions) *cobra.Command {
	var (
		user     string
		videoIDs []string
		pages    pageFlags
	)
	cmd := &cobra.Command{
		Use:   "of",
		Short: "List the distinct tags the user put on any of the videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(user); err != nil {
				return err
			}
			if len(videoIDs) == 0 {
				return fmt.Errorf("--video is required")
			}
			return withRuntime(cmd, opts, func(rt *runtime) error {
				page, err := rt.lib.GetTagsOfVideos(cmd.Context(), user, videoIDs, pages.skip, pages.limit)
				if err != nil {
					return fmt.Errorf("list tags of videos: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id (required)")
	cmd.Flags().StringSliceVar(&videoIDs, "video", nil, "Video id, repeatable or comma-separated (required)")
	pages.register(cmd)
	return cmd
}
