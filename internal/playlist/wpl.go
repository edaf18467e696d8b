package playlist

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-streamer/internal/filesystem"
	"media-streamer/internal/media"
)

// ErrOutsideMediaDir is returned when a playlist file lies outside the media directory.
var ErrOutsideMediaDir = errors.New("playlist is outside the media directory")

// WPL structure based on Windows Media Player playlist format
type WPL struct {
	XMLName xml.Name `xml:"smil"`
	Head    WPLHead  `xml:"head"`
	Body    WPLBody  `xml:"body"`
}

// WPLHead is the <head> element of a WPL file.
type WPLHead struct {
	Title string `xml:"title"`
}

// WPLBody is the <body> element of a WPL file.
type WPLBody struct {
	Seq WPLSeq `xml:"seq"`
}

// WPLSeq lists the playlist entries in order.
type WPLSeq struct {
	Media []WPLMedia `xml:"media"`
}

// WPLMedia is a single playlist entry.
type WPLMedia struct {
	Src string `xml:"src,attr"`
}

// File is a parsed playlist.
type File struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Items []Item `json:"items"`
}

// Item is one playlist entry. Path is relative to the media directory
// and only meaningful when Exists is true.
type Item struct {
	Path     string `json:"path"`
	OrigPath string `json:"origPath"`
	Exists   bool   `json:"exists"`
}

// Existing returns the media-relative paths of the items that were found on disk.
func (f *File) Existing() []string {
	paths := make([]string, 0, len(f.Items))
	for _, it := range f.Items {
		if it.Exists {
			paths = append(paths, it.Path)
		}
	}
	return paths
}

// ParseWPL reads the WPL file at relPath (relative to mediaDir) and
// resolves each entry to a streamable file under mediaDir.
func ParseWPL(mediaDir, relPath string) (*File, error) {
	wplPath := filepath.Join(mediaDir, filepath.FromSlash(relPath))
	if _, ok := relativeTo(mediaDir, wplPath); !ok {
		return nil, ErrOutsideMediaDir
	}

	data, err := os.ReadFile(wplPath)
	if err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}

	var wpl WPL
	if err := xml.Unmarshal(data, &wpl); err != nil {
		return nil, fmt.Errorf("parse playlist: %w", err)
	}

	f := &File{
		Name: wpl.Head.Title,
		Path: filepath.ToSlash(relPath),
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(wplPath), filepath.Ext(wplPath))
	}

	wplDir := filepath.Dir(wplPath)
	for _, m := range wpl.Body.Seq.Media {
		f.Items = append(f.Items, resolveItem(mediaDir, wplDir, m.Src))
	}
	return f, nil
}

func resolveItem(mediaDir, wplDir, src string) Item {
	srcPath := strings.ReplaceAll(src, "\\", "/")
	item := Item{OrigPath: src, Path: filepath.Base(srcPath)}

	if !media.IsStreamable(filepath.Ext(srcPath)) {
		return item
	}

	candidates := []string{filepath.Join(mediaDir, filepath.Base(srcPath))}
	if !filepath.IsAbs(srcPath) && !strings.HasPrefix(srcPath, "//") {
		candidates = append([]string{filepath.Join(wplDir, filepath.FromSlash(srcPath))}, candidates...)
	}

	for _, c := range candidates {
		rel, ok := relativeTo(mediaDir, c)
		if ok && fileExists(c) {
			item.Path = rel
			item.Exists = true
			break
		}
	}
	return item
}

// relativeTo returns target relative to base with forward slashes, and
// false when target escapes base.
func relativeTo(base, target string) (string, bool) {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func fileExists(path string) bool {
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	return err == nil && !info.IsDir()
}
