package report

import (
	"path"
	"strings"

	"github.com/loadpress/loadpress/pkg/config"
	"github.com/loadpress/loadpress/pkg/errors"
)

// PathMapper translates between physical storage paths and the logical
// namespace persisted in report rows. The mapping is a pure prefix
// substitution in both directions: ToLogical(ToPhysical(p)) == p for every
// logical path and the reverse for every physical path under the upload
// root.
type PathMapper struct {
	uploadDir     string
	logicalPrefix string
}

// NewPathMapper creates a path mapper from storage configuration
func NewPathMapper(cfg *config.StorageConfig) *PathMapper {
	return &PathMapper{
		uploadDir:     strings.TrimRight(cfg.UploadDir, "/"),
		logicalPrefix: strings.TrimRight(cfg.LogicalPrefix, "/"),
	}
}

// ToLogical converts a physical path under the upload root to its logical form
func (m *PathMapper) ToLogical(physical string) (string, error) {
	if !strings.HasPrefix(physical, m.uploadDir+"/") {
		return "", errors.NewValidationError("path is outside the storage root").
			WithDetail("path", physical)
	}
	return m.logicalPrefix + strings.TrimPrefix(physical, m.uploadDir), nil
}

// ToPhysical converts a logical path back to its physical form
func (m *PathMapper) ToPhysical(logical string) (string, error) {
	if !strings.HasPrefix(logical, m.logicalPrefix+"/") {
		return "", errors.NewValidationError("path is outside the logical namespace").
			WithDetail("path", logical)
	}
	rel := strings.TrimPrefix(logical, m.logicalPrefix)
	// Reject traversal before touching the filesystem.
	if cleaned := path.Clean(rel); cleaned != rel {
		return "", errors.NewValidationError("path contains traversal segments").
			WithDetail("path", logical)
	}
	return m.uploadDir + rel, nil
}

// UploadDir returns the physical storage root
func (m *PathMapper) UploadDir() string {
	return m.uploadDir
}
