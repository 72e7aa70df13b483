package batch

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"lesionfilter/internal/logger"
)

// RemoveStaleOutputs deletes every file under baseDir whose name ends with
// one of suffixes and returns the removed paths. A file that cannot be
// removed is logged and skipped; only a failed walk is returned as an error.
func RemoveStaleOutputs(baseDir string, suffixes []string, log logger.Logger) ([]string, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if len(suffixes) == 0 {
		return nil, nil
	}

	var stale []string
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, suffix := range suffixes {
			if suffix != "" && strings.HasSuffix(d.Name(), suffix) {
				stale = append(stale, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	removed := make([]string, 0, len(stale))
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			log.Warning("cleanup", "Error deleting file", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		log.Info("cleanup", "Deleted existing file", map[string]interface{}{"path": path})
		removed = append(removed, path)
	}
	return removed, nil
}
