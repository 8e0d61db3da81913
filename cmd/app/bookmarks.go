package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/linkshelf/internal"
	"github.com/starford/linkshelf/internal/bookmarks"
	"github.com/starford/linkshelf/internal/models"
	"github.com/starford/linkshelf/internal/present"
)

func emailFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "email",
		Usage:    "Account email",
		Required: true,
		Sources:  cli.EnvVars("LINKSHELF_EMAIL"),
	}
}

func bookmarkFields() []cli.Flag {
	return []cli.Flag{
		emailFlag(),
		&cli.StringFlag{Name: "title", Usage: "Bookmark title", Required: true},
		&cli.StringFlag{Name: "url", Usage: "Bookmark URL (https:// is added when missing)", Required: true},
		&cli.StringFlag{Name: "category", Usage: "Category (blank means Uncategorized)"},
	}
}

func bookmarksCommand() *cli.Command {
	return &cli.Command{
		Name:  "bookmarks",
		Usage: "Manage bookmarks directly in the local database",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List bookmarks newest first",
				Flags: []cli.Flag{
					emailFlag(),
					&cli.StringFlag{Name: "category", Usage: "Only this category"},
				},
				Action: withLocal(func(ctx context.Context, cmd *cli.Command, svc *bookmarks.Service, owner *models.User) error {
					items, err := svc.List(ctx, owner.ID, cmd.String("category"))
					if err != nil {
						return err
					}
					printBookmarks(os.Stdout, items)
					return nil
				}),
			},
			{
				Name:  "add",
				Usage: "Save a bookmark",
				Flags: bookmarkFields(),
				Action: withLocal(func(ctx context.Context, cmd *cli.Command, svc *bookmarks.Service, owner *models.User) error {
					b, err := svc.Create(ctx, owner.ID, inputFrom(cmd))
					if err != nil {
						return err
					}
					fmt.Printf("added %d: %s\n", b.ID, b.URL)
					return nil
				}),
			},
			{
				Name:      "edit",
				Usage:     "Replace a bookmark's title, url and category",
				ArgsUsage: "<id>",
				Flags:     bookmarkFields(),
				Action: withLocal(func(ctx context.Context, cmd *cli.Command, svc *bookmarks.Service, owner *models.User) error {
					id, err := idArg(cmd)
					if err != nil {
						return err
					}
					b, err := svc.Update(ctx, owner.ID, id, inputFrom(cmd))
					if err != nil {
						return err
					}
					fmt.Printf("updated %d: %s\n", b.ID, b.URL)
					return nil
				}),
			},
			{
				Name:      "rm",
				Usage:     "Delete a bookmark",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{emailFlag()},
				Action: withLocal(func(ctx context.Context, cmd *cli.Command, svc *bookmarks.Service, owner *models.User) error {
					id, err := idArg(cmd)
					if err != nil {
						return err
					}
					if err := svc.Delete(ctx, owner.ID, id); err != nil {
						return err
					}
					fmt.Printf("deleted %d\n", id)
					return nil
				}),
			},
		},
	}
}

type localAction func(ctx context.Context, cmd *cli.Command, svc *bookmarks.Service, owner *models.User) error

// withLocal opens the configured database and resolves --email before running fn.
func withLocal(fn localAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		db, err := internal.OpenStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		owner, err := db.EnsureUser(ctx, cmd.String("email"))
		if err != nil {
			return err
		}
		return fn(ctx, cmd, bookmarks.NewService(db), owner)
	}
}

func inputFrom(cmd *cli.Command) bookmarks.Input {
	return bookmarks.Input{
		Title:    cmd.String("title"),
		URL:      cmd.String("url"),
		Category: cmd.String("category"),
	}
}

func idArg(cmd *cli.Command) (int64, error) {
	raw := cmd.Args().First()
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("expected a bookmark id, got %q", raw)
	}
	return id, nil
}

func printBookmarks(w io.Writer, items []models.Bookmark) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no bookmarks")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDOMAIN\tCATEGORY\tURL")
	for _, b := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", b.ID, b.Title, present.Domain(b.URL), b.Category, b.URL)
	}
	_ = tw.Flush()
}
