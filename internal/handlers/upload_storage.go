package handlers

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const uploadsPrefix = "uploads"

// safeDeleteUpload removes a stored upload given its public path
// ("uploads/products/x.png"). Paths escaping uploadDir are refused.
func safeDeleteUpload(uploadDir, relPath string) error {
	trimmed := strings.TrimSpace(relPath)
	if trimmed == "" {
		return nil
	}

	cleanRel := path.Clean("/" + strings.TrimPrefix(trimmed, "/"))
	cleanRel = strings.TrimPrefix(cleanRel, "/")

	if !strings.HasPrefix(cleanRel, uploadsPrefix+"/") {
		return fmt.Errorf("refusing to delete non-upload path: %s", relPath)
	}
	cleanRel = strings.TrimPrefix(cleanRel, uploadsPrefix+"/")

	cleanBase, err := filepath.Abs(filepath.Clean(uploadDir))
	if err != nil {
		return err
	}
	cleanTarget := filepath.Clean(filepath.Join(cleanBase, filepath.FromSlash(cleanRel)))
	if cleanTarget == cleanBase || !strings.HasPrefix(cleanTarget, cleanBase+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete path outside upload dir: %s", relPath)
	}

	if err := os.Remove(cleanTarget); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return nil
}
