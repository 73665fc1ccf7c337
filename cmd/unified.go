package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunelink/internal/formatter"
	"github.com/desertthunder/tunelink/internal/unified"
	"github.com/urfave/cli/v3"
)

// UnifiedCreate creates a unified playlist.
func (r *Runner) UnifiedCreate(ctx context.Context, cmd *cli.Command) error {
	name, err := requiredArg(cmd, "name")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	p, err := r.unified.Create(user.ID, name, cmd.String("description"))
	if err != nil {
		return err
	}
	return r.writeResult(cmd, p, func() string { return fmt.Sprintf("✓ Created %q (%s)", p.Name, p.ID) })
}

// UnifiedList lists the user's unified playlists.
func (r *Runner) UnifiedList(ctx context.Context, cmd *cli.Command) error {
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	playlists, err := r.unified.List(user.ID)
	if err != nil {
		return err
	}
	return r.writeResult(cmd, playlists, func() string { return formatter.UnifiedTable(playlists) })
}

// UnifiedShow prints one unified playlist with its items.
func (r *Runner) UnifiedShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	detail, err := r.unified.Get(user.ID, id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(detail, cmd.Bool("pretty"))
	}

	r.writePlainHeader(detail.Playlist.Name)
	if detail.Playlist.Description != "" {
		r.writePlain("Description: %s\n", detail.Playlist.Description)
	}
	r.writePlain("Tracks: %d\n\n", detail.Playlist.TrackCount)
	return r.writePlain("%s\n", formatter.ItemsTable(detail.Items))
}

// UnifiedUpdate changes the name or description of a unified playlist.
func (r *Runner) UnifiedUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	var changes unified.Changes
	if cmd.IsSet("name") {
		name := cmd.String("name")
		changes.Name = &name
	}
	if cmd.IsSet("description") {
		description := cmd.String("description")
		changes.Description = &description
	}

	p, err := r.unified.Update(user.ID, id, changes)
	if err != nil {
		return err
	}
	return r.writeResult(cmd, p, func() string { return fmt.Sprintf("✓ Updated %q", p.Name) })
}

// UnifiedDelete removes a unified playlist.
func (r *Runner) UnifiedDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	if err := r.unified.Delete(user.ID, id); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted %s\n", id)
}

// UnifiedAdd inserts stored tracks into a unified playlist.
func (r *Runner) UnifiedAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	var at *int
	if pos := cmd.Int("at"); pos >= 0 {
		at = &pos
	}

	items, err := r.unified.AddTracks(user.ID, id, cmd.StringSlice("track"), at)
	if err != nil {
		return err
	}
	return r.writeResult(cmd, items, func() string {
		return fmt.Sprintf("✓ Added %d track(s)\n%s", len(items), formatter.ItemsTable(items))
	})
}

// UnifiedRemove deletes one item from a unified playlist.
func (r *Runner) UnifiedRemove(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	item, err := requiredArg(cmd, "item")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	if err := r.unified.RemoveItem(user.ID, id, item); err != nil {
		return err
	}
	return r.writePlain("✓ Removed item %s\n", item)
}

// UnifiedMove moves one item to a new position.
func (r *Runner) UnifiedMove(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	item, err := requiredArg(cmd, "item")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	items, err := r.unified.MoveItem(user.ID, id, item, cmd.Int("to"))
	if err != nil {
		return err
	}
	return r.writeResult(cmd, items, func() string { return formatter.ItemsTable(items) })
}

// UnifiedDuplicates reports items that look like the same recording.
func (r *Runner) UnifiedDuplicates(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	groups, err := r.unified.Duplicates(user.ID, id)
	if err != nil {
		return err
	}
	return r.writeResult(cmd, groups, func() string {
		if len(groups) == 0 {
			return "✓ No duplicates found"
		}
		return fmt.Sprintf("Found %d duplicate group(s)\n%s", len(groups), formatter.DuplicatesTable(groups))
	})
}

// UnifiedExport writes a unified playlist to disk.
func (r *Runner) UnifiedExport(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	detail, err := r.unified.Get(user.ID, id)
	if err != nil {
		return err
	}
	return r.export(formatter.FromUnified(detail.Playlist, detail.Items), cmd.String("format"), cmd.String("output"))
}

// UnifiedSearch searches connected providers for tracks.
func (r *Runner) UnifiedSearch(ctx context.Context, cmd *cli.Command) error {
	provider, err := optionalProvider(cmd.String("provider"))
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	result, err := r.unified.SearchTracks(ctx, user.ID, cmd.StringArg("query"), provider)
	if err != nil {
		return err
	}
	return r.writeResult(cmd, result, func() string { return formatter.SearchResults(result) })
}

// UnifiedPlayback shows how a stored track can be played.
func (r *Runner) UnifiedPlayback(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "track")
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	playback, err := r.unified.PlaybackInfo(ctx, user.ID, id)
	if err != nil {
		return err
	}
	return r.writeResult(cmd, playback, func() string {
		info := playback.Playback
		s := fmt.Sprintf("%s - %s\nType: %s\n", playback.Track.Artist, playback.Track.Name, info.Type)
		if info.URI != "" {
			s += fmt.Sprintf("URI: %s\n", info.URI)
		}
		if info.PreviewURL != "" {
			s += fmt.Sprintf("Preview: %s\n", info.PreviewURL)
		}
		return s + fmt.Sprintf("Open: %s", info.ExternalURL)
	})
}
