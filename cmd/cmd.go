// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

func pageFlags(limit int) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "page",
			Usage: "Page number, starting at 1",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of rows per page",
			Value: limit,
		},
	}
}

func providerFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "provider",
		Aliases: []string{"p"},
		Usage:   usage,
	}
}

func withOutput(flags ...cli.Flag) []cli.Flag {
	return append(flags, outputFlags()...)
}

// setupCommand handles setup operations for the database and the encryption key.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "key",
				Usage:  "Generate a token encryption key",
				Action: r.SetupKey,
			},
		},
	}
}

// serveCommand runs the OAuth callback, health and metrics server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the OAuth connect and callback routes, /healthz and /metrics",
		Action: r.Serve,
	}
}

// providersCommand handles provider account operations
func providersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "providers",
		Aliases: []string{"accounts"},
		Usage:   "Connect and disconnect Spotify and SoundCloud accounts",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Show which providers are connected",
				Flags:  outputFlags(),
				Action: r.ProvidersList,
			},
			{
				Name:      "connect",
				Usage:     "Authorize a provider in the browser and store its token",
				Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: defaultConnectTimeout,
					},
				},
				Action: r.ProvidersConnect,
			},
			{
				Name:      "disconnect",
				Usage:     "Remove a provider account with its token and mirrored playlists",
				Arguments: []cli.Argument{&cli.StringArg{Name: "provider"}},
				Action:    r.ProvidersDisconnect,
			},
		},
	}
}

// playlistsCommand handles mirrored provider playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "Browse playlists mirrored from connected providers",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List mirrored playlists ordered by name",
				Flags:  withOutput(append(pageFlags(50), providerFlag("Only list playlists of this provider"))...),
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show a mirrored playlist with its tracks",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     outputFlags(),
				Action:    r.PlaylistsShow,
			},
			{
				Name:      "export",
				Usage:     "Export a mirrored playlist to csv, md or txt",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     exportFlags(),
				Action:    r.PlaylistsExport,
			},
		},
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Export format: csv, md or txt",
			Value:   "csv",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output path (base name for csv, directory for md, file for txt)",
		},
	}
}

// syncCommand handles reconciliation runs
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull provider playlists into the local mirror",
		Commands: []*cli.Command{
			{
				Name:   "pull",
				Usage:  "Refresh the playlist lists of every connected account",
				Flags:  outputFlags(),
				Action: r.SyncPull,
			},
			{
				Name:      "playlist",
				Usage:     "Re-fetch the tracks of one mirrored playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     outputFlags(),
				Action:    r.SyncPlaylist,
			},
			{
				Name:   "all",
				Usage:  "Re-fetch the tracks of every mirrored playlist",
				Flags:  withOutput(providerFlag("Only sync playlists of this provider")),
				Action: r.SyncAll,
			},
			{
				Name:   "status",
				Usage:  "Show running syncs and the last completed one",
				Flags:  outputFlags(),
				Action: r.SyncStatus,
			},
			{
				Name:   "history",
				Usage:  "List past sync runs, newest first",
				Flags:  withOutput(pageFlags(20)...),
				Action: r.SyncHistory,
			},
		},
	}
}

// conflictsCommand handles sync conflicts
func conflictsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "conflicts",
		Usage: "Review and resolve sync conflicts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List conflicts",
				Flags: withOutput(
					&cli.BoolFlag{Name: "open", Usage: "Only unresolved conflicts"},
					&cli.BoolFlag{Name: "resolved", Usage: "Only resolved conflicts"},
				),
				Action: r.ConflictsList,
			},
			{
				Name:  "resolve",
				Usage: "Resolve a conflict with keep, remove, replace or ignore",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "resolution"},
				},
				Flags:  outputFlags(),
				Action: r.ConflictsResolve,
			},
		},
	}
}

// unifiedCommand handles unified playlists, search and playback
func unifiedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "unified",
		Aliases: []string{"un"},
		Usage:   "Build playlists that mix tracks from every provider",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a unified playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: withOutput(
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Playlist description"},
				),
				Action: r.UnifiedCreate,
			},
			{
				Name:   "list",
				Usage:  "List unified playlists",
				Flags:  outputFlags(),
				Action: r.UnifiedList,
			},
			{
				Name:      "show",
				Usage:     "Show a unified playlist with its items",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     outputFlags(),
				Action:    r.UnifiedShow,
			},
			{
				Name:      "update",
				Usage:     "Rename or describe a unified playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: withOutput(
					&cli.StringFlag{Name: "name", Usage: "New name"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
				),
				Action: r.UnifiedUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a unified playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.UnifiedDelete,
			},
			{
				Name:      "add",
				Usage:     "Add stored tracks to a unified playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: withOutput(
					&cli.StringSliceFlag{Name: "track", Aliases: []string{"t"}, Usage: "Track id, repeatable", Required: true},
					&cli.IntFlag{Name: "at", Usage: "Insert at this position instead of appending", Value: -1},
				),
				Action: r.UnifiedAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove an item from a unified playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "item"},
				},
				Action: r.UnifiedRemove,
			},
			{
				Name:  "move",
				Usage: "Move an item to a new position",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "item"},
				},
				Flags: withOutput(
					&cli.IntFlag{Name: "to", Usage: "Target position, starting at 0", Required: true},
				),
				Action: r.UnifiedMove,
			},
			{
				Name:      "duplicates",
				Usage:     "Find duplicate tracks in a unified playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     outputFlags(),
				Action:    r.UnifiedDuplicates,
			},
			{
				Name:      "export",
				Usage:     "Export a unified playlist to csv, md or txt",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     exportFlags(),
				Action:    r.UnifiedExport,
			},
			{
				Name:      "search",
				Usage:     "Search connected providers and store the results",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags:     withOutput(providerFlag("Only search this provider")),
				Action:    r.UnifiedSearch,
			},
			{
				Name:      "playback",
				Usage:     "Show how a stored track can be played",
				Arguments: []cli.Argument{&cli.StringArg{Name: "track"}},
				Flags:     outputFlags(),
				Action:    r.UnifiedPlayback,
			},
		},
	}
}
