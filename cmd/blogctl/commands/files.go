package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newFilesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect and repair stored files",
	}
	cmd.AddCommand(newFilesListCmd(a), newFixPermissionsCmd(a))
	return cmd
}

func newFilesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every file in the bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := a.content.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(files)
			}

			sort.Slice(files, func(i, j int) bool { return files[i].CreatedAt.After(files[j].CreatedAt) })

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tSIZE\tPUBLIC\tCREATED")
			var total uint64
			for _, f := range files {
				total += uint64(f.Size)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
					f.ID, f.Name, f.MimeType, humanize.Bytes(uint64(f.Size)), f.Public, humanize.RelTime(f.CreatedAt, time.Now(), "ago", "from now"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\n%s in %s files\n", humanize.Bytes(total), humanize.Comma(int64(len(files))))
			return nil
		},
	}
}

func newFixPermissionsCmd(a *app) *cobra.Command {
	var fileID string

	cmd := &cobra.Command{
		Use:   "fix-permissions",
		Short: "Grant public read access to stored files",
		Long: `Grant public read access to every file in the bucket, or to one file.

Images embedded in posts are served from the public view path, which only
serves public files. Run this after importing files from elsewhere.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fileID != "" {
				if err := a.content.FixFilePermission(cmd.Context(), fileID); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "File %s is now public\n", fileID)
				return nil
			}

			report, err := a.content.FixFilePermissions(cmd.Context())
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(report)
			}

			fmt.Fprintf(a.out, "Updated %d of %d files\n", report.Updated, report.Total)
			for id, msg := range report.Failures {
				fmt.Fprintf(a.out, "  %s: %s\n", id, msg)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d files could not be updated", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fileID, "file", "", "Fix a single file by ID")
	return cmd
}
