package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTagCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Add or remove tags on videos",
	}
	cmd.AddCommand(newTagEditCmd(opts, "add"))
	cmd.AddCommand(newTagEditCmd(opts, "remove"))
	return cmd
}

func newTagEditCmd(opts *globalOptions, action string) *cobra.Command {
	var (
		user     string
		videoIDs []string
		tags     []string
	)
	short := "Attach tags to videos, fetching metadata for new videos"
	if action == "remove" {
		short = "Detach tags from videos"
	}
	cmd := &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(user); err != nil {
				return err
			}
			if len(videoIDs) == 0 || len(tags) == 0 {
				return fmt.Errorf("--video and --tag are required")
			}
			return withRuntime(cmd, opts, func(rt *runtime) error {
				if action == "add" {
					result, err := rt.lib.AddTagsToVideos(cmd.Context(), user, videoIDs, tags)
					if err != nil {
						return fmt.Errorf("add tags: %w", err)
					}
					return printJSON(cmd.OutOrStdout(), result)
				}
				result, err := rt.lib.RemoveTagsFromVideos(cmd.Context(), user, videoIDs, tags)
				if err != nil {
					return fmt.Errorf("remove tags: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id (required)")
	cmd.Flags().StringSliceVar(&videoIDs, "video", nil, "Video id, repeatable or comma-separated (required)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag, repeatable or comma-separated (required)")
	return cmd
}

func newVideoCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Manage videos in a user's library",
	}
	var (
		user     string
		videoIDs []string
	)
	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove every tag the user put on the videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(user); err != nil {
				return err
			}
			if len(videoIDs) == 0 {
				return fmt.Errorf("--video is required")
			}
			return withRuntime(cmd, opts, func(rt *runtime) error {
				result, err := rt.lib.RemoveVideos(cmd.Context(), user, videoIDs)
				if err != nil {
					return fmt.Errorf("remove videos: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	remove.Flags().StringVar(&user, "user", "", "User id (required)")
	remove.Flags().StringSliceVar(&videoIDs, "video", nil, "Video id, repeatable or comma-separated (required)")
	cmd.AddCommand(remove)
	return cmd
}
