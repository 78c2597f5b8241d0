package manager

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/replacer"
)

// LoaderConfig controls rule discovery and file validation.
type LoaderConfig struct {
	// AllowedExtensions lists the rule file extensions, including the dot.
	AllowedExtensions []string

	// MaxFileSize is the largest accepted rule file in bytes.
	MaxFileSize int64

	// SkipHidden skips files and group directories starting with a dot.
	SkipHidden bool

	// FollowSymlinks accepts symbolic links to rule files.
	FollowSymlinks bool
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		AllowedExtensions: []string{".json", ".yaml", ".yml"},
		MaxFileSize:       1 << 20,
		SkipHidden:        true,
		FollowSymlinks:    true,
	}
}

// Source is a discovered rule file.
type Source struct {
	// Path is the rule file path; it identifies the rule.
	Path string

	// Group is the name of the group directory containing the file.
	Group string
}

// Loader reads rule files from the file system.
type Loader struct {
	config *LoaderConfig
	logger *slog.Logger
}

// NewLoader creates a loader. A nil config uses DefaultLoaderConfig.
func NewLoader(config *LoaderConfig, logger *slog.Logger) *Loader {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{config: config, logger: logger}
}

// Accepts reports whether path has an allowed extension and a known format.
func (l *Loader) Accepts(path string) bool {
	if _, ok := replacer.FormatFromPath(path); !ok {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range l.config.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// ReadFile reads and decodes a single rule file. It validates the file
// size and UTF-8 encoding before decoding.
func (l *Loader) ReadFile(path string) (replacer.Data, error) {
	format, ok := replacer.FormatFromPath(path)
	if !ok || !l.Accepts(path) {
		return replacer.Data{}, &LoadError{
			FilePath: path,
			Message:  "not a rule file",
			Cause:    ErrUnsupportedExtension,
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		msg := "failed to access file"
		switch {
		case errors.Is(err, fs.ErrNotExist):
			msg = "file not found"
		case errors.Is(err, fs.ErrPermission):
			msg = "permission denied"
		}
		return replacer.Data{}, &LoadError{FilePath: path, Message: msg, Cause: err}
	}

	if !info.Mode().IsRegular() {
		return replacer.Data{}, &LoadError{FilePath: path, Message: "not a regular file"}
	}

	if info.Size() > l.config.MaxFileSize {
		return replacer.Data{}, &LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), l.config.MaxFileSize),
			Cause:    ErrFileTooLarge,
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return replacer.Data{}, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}

	if !utf8.Valid(raw) {
		return replacer.Data{}, &LoadError{FilePath: path, Message: "file contains invalid UTF-8 encoding"}
	}

	data, err := replacer.Decode(raw, format)
	if err != nil {
		return replacer.Data{}, newParseError(path, raw, err)
	}

	return data, nil
}

// Discover lists rule files under root. Each direct subdirectory of root is
// a group; regular files with an allowed extension directly inside a group
// are rule sources. Files at the root level and nested directories are
// ignored. A missing root yields no sources and no error.
func (l *Loader) Discover(root string) ([]Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Info("Replacer directory does not exist", "path", root)
			return nil, nil
		}
		return nil, &LoadError{FilePath: root, Message: "failed to access directory", Cause: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{FilePath: root, Message: "not a directory"}
	}

	var sources []Source
	visited := make(map[string]bool)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		depth := len(strings.Split(rel, string(filepath.Separator)))

		if l.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if depth > 1 {
				return filepath.SkipDir
			}
			return nil
		}

		// Only files inside a group directory are rules.
		if depth != 2 || !l.Accepts(path) {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !l.config.FollowSymlinks {
				return nil
			}
			realPath, err := filepath.EvalSymlinks(path)
			if err != nil {
				l.logger.Warn("Skipping unresolvable symlink", "path", path, "error", err)
				return nil
			}
			if visited[realPath] {
				return nil
			}
			visited[realPath] = true
		}

		sources = append(sources, Source{Path: path, Group: filepath.Base(filepath.Dir(path))})
		return nil
	})
	if err != nil {
		return nil, &LoadError{FilePath: root, Message: "failed to walk directory", Cause: err}
	}

	return sources, nil
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// newParseError locates a decoder error in the source text when the decoder
// reports a position.
func newParseError(path string, raw []byte, err error) *ParseError {
	pe := &ParseError{FilePath: path, Message: err.Error(), Cause: err}

	var offset int64 = -1
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			pe.Line, _ = strconv.Atoi(m[1])
		}
	}

	if offset >= 0 && offset <= int64(len(raw)) {
		before := raw[:offset]
		pe.Line = bytes.Count(before, []byte("\n")) + 1
		pe.Column = int(offset) - bytes.LastIndexByte(before, '\n')
	}

	return pe
}
