package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/tunelink/internal/formatter"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistsList lists mirrored playlists, one page at a time.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	provider, err := optionalProvider(cmd.String("provider"))
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	page, err := r.unified.Mirrors(user.ID, provider, cmd.Int("page"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	return r.writeResult(cmd, page, func() string {
		return fmt.Sprintf("%s\nPage %d of %d (%d playlists)", formatter.MirrorsTable(page.Playlists), page.Page, page.TotalPages, page.Total)
	})
}

// PlaylistsShow prints a mirrored playlist and its tracks.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	mirror, err := r.unified.Mirror(user.ID, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(mirror, cmd.Bool("pretty"))
	}

	pl := mirror.Playlist
	r.writePlainHeader(pl.Name)
	r.writePlain("Provider: %s\n", pl.Provider.DisplayName())
	if pl.Description != "" {
		r.writePlain("Description: %s\n", pl.Description)
	}
	r.writePlain("Visibility: %s\n", formatter.Visibility(pl.IsPublic))

	tracks := make([]*models.Track, 0, len(mirror.Items))
	for _, it := range mirror.Items {
		if it.Track != nil {
			tracks = append(tracks, it.Track)
		}
	}
	return r.writePlain("\n%s\n", formatter.TracksTable(tracks))
}

// PlaylistsExport writes a mirrored playlist to disk.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	mirror, err := r.unified.Mirror(user.ID, id)
	if err != nil {
		return err
	}
	return r.export(formatter.FromMirror(mirror.Playlist, mirror.Items), cmd.String("format"), cmd.String("output"))
}

// export writes e in format to output, defaulting file names to the playlist id.
func (r *Runner) export(e *formatter.Export, format, output string) error {
	r.logger.Info("exporting playlist", "id", e.ID, "format", format, "tracks", len(e.Tracks))

	switch strings.ToLower(format) {
	case "csv":
		result, err := formatter.WriteCSVExport(e, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Tracks exported to %s\n", result.TracksFile)
		r.writePlain("✓ Metadata exported to %s\n", result.MetadataFile)
	case "md", "markdown":
		result, err := formatter.WriteMarkdownExport(r.httpClient, e, output)
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			r.logger.Warn("cover image skipped", "error", w)
		}
		r.writePlain("✓ Exported to %s/\n", result.Directory)
		for _, f := range result.Files {
			r.writePlain("  %s\n", f)
		}
	case "txt", "text":
		path, err := formatter.WriteTextExport(e, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported to %s\n", path)
	default:
		return fmt.Errorf("%w: unknown export format %q (csv, md, txt)", shared.ErrInvalidArgument, format)
	}
	return nil
}

func requiredArg(cmd *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(cmd.StringArg(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return v, nil
}
