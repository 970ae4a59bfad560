package panel

import (
	"fmt"
	"strings"
)

// Folder is one of the backend's two script locations.
type Folder string

const (
	FolderDownloads Folder = "downloads"
	FolderAutokey   Folder = "autokey"
)

var Folders = []Folder{FolderDownloads, FolderAutokey}

func ParseFolder(s string) (Folder, error) {
	switch Folder(strings.ToLower(strings.TrimSpace(s))) {
	case FolderDownloads:
		return FolderDownloads, nil
	case FolderAutokey:
		return FolderAutokey, nil
	default:
		return "", fmt.Errorf("unknown folder %q (want downloads or autokey)", s)
	}
}

func (f Folder) String() string { return string(f) }

// scriptSuffixes are the extensions a saved file may keep.
var scriptSuffixes = []string{".py", ".side"}

// NormalizeFilename trims name and appends ".py" unless it already ends in
// an allowed script suffix. The check is case-sensitive.
func NormalizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	for _, s := range scriptSuffixes {
		if strings.HasSuffix(name, s) {
			return name
		}
	}
	return name + ".py"
}
