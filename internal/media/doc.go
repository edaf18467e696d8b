// Package media defines the track model shared by the library, the play
// queue and the streaming pipeline, together with the format tables used
// to classify files found under the media directory.
//
// A Track is a plain value: two tracks compare equal with == when every
// field matches, which lets transcode parameters built from a track be
// used directly as cache keys.
//
// Track metadata that cannot be read from the file itself is derived from
// its location, following the common "Artist/Album/NN - Title.ext" layout.
package media
