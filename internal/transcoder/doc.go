// Package transcoder converts library tracks into the format and bit rate
// a player asks for, and caches the converted output.
//
// Parameters are derived from the track, the player's profile and the
// request: a different output format means transcoding, a source bit
// rate above the limit means downsampling, and anything else is streamed
// from disk untouched. Video tracks are converted to a browser-friendly
// container when their own is not, or when scaling or seeking is asked
// for.
//
// Conversion is done by an ffmpeg child process whose stdout is returned
// as the stream; closing the stream kills the process. Cleanup kills every
// process still running at shutdown.
//
// The Cache keeps the full output of the most recent conversion, plus a
// few recent ones in an LRU, so a player that reconnects and requests the
// same track again does not run ffmpeg a second time.
package transcoder
