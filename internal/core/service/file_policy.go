package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ifl-de/intake-api/internal/core/domain"
)

const (
	defaultMaxFileSize = 10 << 20
	defaultMaxFiles    = 10
	maxFilenameLength  = 255
)

// dangerousExtensions are refused whatever their sniffed content type.
var dangerousExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".com": {}, ".pif": {}, ".scr": {},
	".vbs": {}, ".js": {}, ".jar": {}, ".msi": {}, ".dll": {}, ".sh": {},
	".ps1": {}, ".app": {}, ".dmg": {},
}

// FilePolicy is the per-file validation applied to every submission batch.
type FilePolicy struct {
	MaxFileSize  int64
	MaxFiles     int
	AllowedTypes []string
}

type acceptedFile struct {
	name        string
	contentType string
	content     []byte
}

func (p FilePolicy) withDefaults() FilePolicy {
	if p.MaxFileSize <= 0 {
		p.MaxFileSize = defaultMaxFileSize
	}
	if p.MaxFiles <= 0 {
		p.MaxFiles = defaultMaxFiles
	}
	if len(p.AllowedTypes) == 0 {
		p.AllowedTypes = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	return p
}

// check validates the whole batch and returns the first failure. Nothing
// is accepted unless every file passes.
func (p FilePolicy) check(files []domain.FileUpload) ([]acceptedFile, error) {
	if len(files) == 0 {
		return nil, domain.Invalid("at least one file is required")
	}
	if len(files) > p.MaxFiles {
		return nil, domain.Invalid("at most %d files per submission", p.MaxFiles)
	}

	accepted := make([]acceptedFile, 0, len(files))
	for _, f := range files {
		name := sanitizeFilename(f.Filename)
		reject := func(format string, args ...any) error {
			return &domain.ValidationError{Filename: name, Reason: fmt.Sprintf(format, args...)}
		}

		switch size := f.Size(); {
		case size == 0:
			return nil, reject("file is empty")
		case size > p.MaxFileSize:
			return nil, reject("file exceeds the %d byte limit", p.MaxFileSize)
		}

		if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
			if _, bad := dangerousExtensions[ext]; bad {
				return nil, reject("file extension %s is not allowed", ext)
			}
		}

		detected := mimetype.Detect(f.Content)
		contentType, ok := p.match(detected)
		if !ok {
			return nil, reject("content type %s is not allowed", detected.String())
		}

		accepted = append(accepted, acceptedFile{name: name, contentType: contentType, content: f.Content})
	}
	return accepted, nil
}

// match returns the allow-list entry the sniffed type satisfies.
func (p FilePolicy) match(detected *mimetype.MIME) (string, bool) {
	for _, allowed := range p.AllowedTypes {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return "", false
}

// sanitizeFilename strips path components and control characters from a
// client supplied name.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, " .")

	if len(name) > maxFilenameLength {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = name[:maxFilenameLength-len(ext)] + ext
	}
	if name == "" || name == "/" {
		return "unnamed"
	}
	return name
}
