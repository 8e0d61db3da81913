package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/starford/linkshelf/internal/client"
	"github.com/starford/linkshelf/internal/models"
	"github.com/starford/linkshelf/internal/present"
	"github.com/starford/linkshelf/internal/reconcile"
)

func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Usage:   "linkshelf server URL",
		Value:   "http://localhost:8080",
		Sources: cli.EnvVars("LINKSHELF_SERVER"),
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in to a server and print a session token",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.StringFlag{Name: "email", Usage: "Account email", Required: true},
			&cli.StringFlag{Name: "code", Usage: "Login code from the link, when the server does not echo it"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := client.New(cmd.String("server"))
			if err != nil {
				return err
			}

			code := cmd.String("code")
			if code == "" {
				lr, err := c.RequestCode(ctx, cmd.String("email"))
				if err != nil {
					return err
				}
				if lr.Link == "" {
					fmt.Fprintf(os.Stderr, "login link for %s issued; find it in the server log and rerun with --code\n", lr.Email)
					return nil
				}
				if code, err = client.CodeFromLink(lr.Link); err != nil {
					return err
				}
			}

			token, err := c.Exchange(ctx, code)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Load bookmarks from a server and follow live changes",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.StringFlag{
				Name:     "token",
				Usage:    "Session token printed by linkshelf login",
				Required: true,
				Sources:  cli.EnvVars("LINKSHELF_TOKEN"),
			},
			&cli.StringFlag{Name: "category", Usage: "Only show this category"},
		},
		Action: watch,
	}
}

func watch(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(cmd.String("server"), client.WithToken(cmd.String("token")))
	if err != nil {
		return err
	}
	category := cmd.String("category")

	// The view holds every bookmark; the category only narrows what is printed.
	initial, err := c.List(ctx, "")
	if err != nil {
		return err
	}
	show := func(items []models.Bookmark) {
		printBookmarks(os.Stdout, present.FilterByCategory(items, category))
	}
	show(initial)

	v, err := reconcile.Open(ctx, c, c, initial, reconcile.Options{
		OnApply: func(ch models.Change, items []models.Bookmark) {
			fmt.Printf("\n%s %d\n", ch.Kind, ch.BookmarkID)
			show(items)
		},
	})
	if err != nil {
		return err
	}
	defer v.Close()

	if !v.Live() {
		return fmt.Errorf("no active session; run `linkshelf login` first")
	}

	select {
	case <-ctx.Done():
	case <-v.Done():
		fmt.Fprintln(os.Stderr, "change feed closed")
	}
	return nil
}
