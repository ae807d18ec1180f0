package check

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"tunesync/internal/core"
	"tunesync/pkg/remoteid"
)

var (
	promptColor = color.New(color.FgYellow)
	headerColor = color.New(color.FgCyan)
	errorColor  = color.New(color.FgRed)
)

const pauseHelp = `Temporary playlists have been created. Check the songs in each playlist, then enter one of:
  <name of playlist>  Print the items originally added to that temp playlist
  <URL/URI/ID>        Print the current items of the given remote object
  <return>            Continue and check for any switches you made
  l                   List the names of the temporary playlists created
  s                   Check current playlists, then skip any remaining batches
  q                   Delete current temporary playlists and quit the check
  h                   Show this dialogue again
`

const inputHelp = `The following items were removed and/or matches were not found. Enter one of:
  <URL/URI/ID>  Assign the given identifier to the item
  u             Mark item as unavailable on the remote service
  n             Leave item with no URI, it will be searched again next run
  a             Append to u or n to apply that choice to all remaining items here
  r             Recheck the playlist and reprompt for all items
  p             Print the local path of the current item
  s             Skip the checking process for all current playlists
  q             Skip the checking process and quit the check
  h             Show this dialogue again
`

// readLine returns the next trimmed input line. EOF or a read failure is
// treated as quit so temporary playlist cleanup still runs.
func (c *Checker) readLine(prompt string) (string, bool) {
	promptColor.Fprintf(c.out, "%s: ", prompt)
	if !c.in.Scan() {
		c.quit = true
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// pause blocks between playlist creation and reconciliation so the user
// can review the batch in the player.
func (c *Checker) pause(ctx context.Context, page, batches int) {
	headerColor.Fprint(c.out, pauseHelp)

	for {
		input, ok := c.readLine(fmt.Sprintf("Enter (%d/%d)", page, batches))
		if !ok || input == "" {
			return
		}
		c.log.Debug("pause input", zap.String("input", input))

		lower := strings.ToLower(input)
		switch {
		case lower == "h":
			headerColor.Fprint(c.out, pauseHelp)
		case lower == "q":
			c.quit = true
			return
		case lower == "s":
			c.skip = true
			return
		case lower == "l":
			for _, name := range c.order {
				fmt.Fprintf(c.out, "- %s\n", name)
			}
		case c.printCollection(lower):
		case remoteid.Valid(input):
			c.printRemote(ctx, input)
		default:
			errorColor.Fprintln(c.out, "Input not recognised.")
		}
	}
}

// printCollection prints the items originally added to a temp playlist
// when the input names one, matched case-insensitively by containment.
func (c *Checker) printCollection(input string) bool {
	for _, name := range c.order {
		if !strings.Contains(strings.ToLower(name), input) {
			continue
		}

		headerColor.Fprintf(c.out, "\nShowing items originally added to %s:\n", name)
		i := 0
		for _, track := range c.collections[name].Tracks {
			if !track.URI.IsResolved() {
				continue
			}
			i++
			fmt.Fprintf(c.out, "%02d: %s - %s\n", i, track.Title, track.URI.Value())
		}
		return true
	}
	return false
}

// printRemote prints the current state of a remote object given by URL,
// URI or bare ID. Read-only, session state is untouched.
func (c *Checker) printRemote(ctx context.Context, input string) {
	kind, id, err := remoteid.Parse(input)
	if err != nil {
		errorColor.Fprintln(c.out, "Input not recognised.")
		return
	}

	switch kind {
	case remoteid.KindPlaylist:
		items, err := c.api.GetPlaylistItems(ctx, id)
		if err != nil {
			errorColor.Fprintf(c.out, "Failed to load playlist: %v\n", err)
			return
		}
		for i, item := range items {
			fmt.Fprintf(c.out, "%02d: %s - %s\n", i+1, item.Title, item.URI)
		}
	case remoteid.KindTrack:
		track, err := c.api.GetTrack(ctx, id)
		if err != nil {
			errorColor.Fprintf(c.out, "Failed to load track: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "%s - %s - %s\n", track.Title, strings.Join(track.Artists, ", "), track.URI)
	default:
		errorColor.Fprintln(c.out, "Only track and playlist links can be printed.")
	}
}

// matchToInput prompts the user for every track the automatic pairing
// could not place.
func (c *Checker) matchToInput(name string) {
	if len(c.remaining) == 0 {
		return
	}

	headerColor.Fprintf(c.out, "\n%s: %s", name, inputHelp)
	c.log.Debug("prompting for unmatched items",
		zap.String("playlist", name),
		zap.Int("count", len(c.remaining)))

	applyAll := ""
	pending := append([]*core.LocalTrack(nil), c.remaining...)

	for _, track := range pending {
		if c.quit || c.skip {
			return
		}

		for {
			input := applyAll
			if input == "" {
				line, ok := c.readLine(track.Title)
				if !ok {
					c.remaining = nil
					return
				}
				input = line
			}

			done, restart := c.applyInput(name, track, input, &applyAll)
			if restart {
				return
			}
			if done {
				break
			}
		}
	}
}

// applyInput interprets one command for one remaining track. It reports
// whether the track is settled and whether the caller must restart the
// whole remote check.
func (c *Checker) applyInput(name string, track *core.LocalTrack, input string, applyAll *string) (done, restart bool) {
	lower := strings.ToLower(input)

	switch {
	case lower == "h":
		headerColor.Fprintf(c.out, "\n%s: %s", name, inputHelp)
		return false, false

	case lower == "s":
		c.skip = true
		c.remaining = nil
		return true, true

	case lower == "q":
		c.quit = true
		c.remaining = nil
		return true, true

	case lower == "r":
		c.log.Debug("rechecking playlist", zap.String("playlist", name))
		return true, true

	case strings.ReplaceAll(lower, "a", "") == "u":
		c.log.Debug("marking unavailable", zap.String("title", track.Title))
		track.URI = core.MissingURI()
		c.removeRemaining(track)
		if strings.Contains(lower, "a") {
			*applyAll = input
		}
		return true, false

	case strings.ReplaceAll(lower, "a", "") == "n":
		track.URI = core.UnresolvedURI()
		c.removeRemaining(track)
		if strings.Contains(lower, "a") {
			*applyAll = input
		}
		return true, false

	case lower == "p":
		fmt.Fprintln(c.out, track.Path)
		return false, false

	case len(input) > remoteid.IDLength:
		id, err := remoteid.ParseKind(input, remoteid.KindTrack)
		if err != nil {
			errorColor.Fprintln(c.out, "Input not recognised.")
			return false, false
		}
		uri := remoteid.URI(remoteid.KindTrack, id)
		c.log.Debug("switching URI",
			zap.String("title", track.Title),
			zap.String("uri", uri))
		track.URI = core.ResolvedURI(uri)
		c.switched = append(c.switched, track)
		c.removeRemaining(track)
		return true, false

	default:
		errorColor.Fprintln(c.out, "Input not recognised.")
		return false, false
	}
}

func (c *Checker) removeRemaining(track *core.LocalTrack) {
	for i, t := range c.remaining {
		if t == track {
			c.remaining = append(c.remaining[:i], c.remaining[i+1:]...)
			return
		}
	}
}
