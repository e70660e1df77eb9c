package source

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/theirongolddev/cxburn/internal/model"
)

// SessionExt is the extension of Codex session logs.
const SessionExt = ".jsonl"

// ScanDir walks the sessions root and returns every session log, sorted by
// path, with its current fingerprint. Hidden files and directories are
// skipped. A missing root yields no files and no error.
func ScanDir(root string) ([]DiscoveredFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var files []DiscoveredFile

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // intentionally skip unreadable entries
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != SessionExt {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // file vanished between readdir and stat
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		files = append(files, DiscoveredFile{
			Path:        path,
			Fingerprint: FingerprintOf(fi),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// FingerprintOf builds the change signal for a file.
func FingerprintOf(fi fs.FileInfo) model.Fingerprint {
	return model.Fingerprint{
		Size:      fi.Size(),
		ModTimeNs: fi.ModTime().UnixNano(),
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
