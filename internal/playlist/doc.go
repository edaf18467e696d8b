// Package playlist holds the per-player play queue and the loaders that
// fill it from playlist files.
//
// The Queue is an ordered list of entries with a cursor pointing at the
// current one. Entries are addressed by handle rather than by track, so
// the same track can appear several times and the cursor keeps pointing
// at the right occurrence when entries are moved, sorted, shuffled or
// reversed. Every mutating call first saves the entries and cursor; Undo
// restores that single snapshot.
//
// Playback status is either playing or stopped. A stopped queue makes the
// stream adapter end its output; advancing past the last entry stops the
// queue unless repeat is enabled.
//
// WPL (Windows Media Player) playlists can be parsed into a list of paths
// relative to the media directory. Entries are resolved against the
// playlist's own folder first and then against the media directory, with
// backslash separators normalized so playlists written on Windows work.
package playlist
