package media

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// numberedTitle matches "03 - Title", "03. Title", "03_Title" and "3 Title".
var numberedTitle = regexp.MustCompile(`^(\d{1,3})\s*[-._ ]\s*(.+)$`)

// TrackFromPath builds a Track from a path relative to the media directory.
// Artist and album come from the two innermost parent folders when present,
// and a leading number in the file name becomes the track number.
func TrackFromPath(relPath string, size int64) Track {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	folder := path.Dir(relPath)
	if folder == "." {
		folder = ""
	}

	base := path.Base(relPath)
	ext := path.Ext(base)
	title := strings.TrimSuffix(base, ext)

	t := Track{
		Path:      relPath,
		Folder:    folder,
		Title:     title,
		Format:    FormatOf(base),
		MediaType: GetMediaType(ext),
		Size:      size,
	}

	if m := numberedTitle.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			t.TrackNumber = n
			t.Title = strings.TrimSpace(m[2])
		}
	}

	if folder != "" {
		parts := strings.Split(folder, "/")
		t.Album = parts[len(parts)-1]
		if len(parts) >= 2 {
			t.Artist = parts[len(parts)-2]
		}
	}
	return t
}
