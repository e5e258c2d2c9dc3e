package extract

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"nfex/config"
	"nfex/state"
)

const defaultPrefix = "nfe"

// isDirDestination tells whether destination names a directory to put output
// into rather than output file itself. Existing directories and paths without
// recognized output extension are directories.
func isDirDestination(dst string) bool {
	if fi, err := os.Stat(dst); err == nil {
		return fi.IsDir()
	}
	_, ok := config.OutputFmtFromPath(dst)
	return !ok
}

// buildOutputPath returns constructed output file path. When destination is a
// file it is used as is, otherwise file name is produced either by default
// naming scheme or by user-defined template. Path is cleaned up and if
// requested transliterated.
func buildOutputPath(dst string, format config.OutputFmt, values Values, env *state.LocalEnv) string {
	if !isDirDestination(dst) {
		return dst
	}

	defaultFile := buildDefaultFileName(values, format, env)

	if env.Cfg.Output.NameTemplate == "" {
		return filepath.Join(dst, defaultFile)
	}

	expandedName := expandOutputNameTemplate(values, env)
	if expandedName == "" {
		// fallback to default name if template expansion failed
		return filepath.Join(dst, defaultFile)
	}

	return assemblePathWithSubdirs(dst, expandedName, format, env)
}

func buildDefaultFileName(values Values, format config.OutputFmt, env *state.LocalEnv) string {
	return cleanPathSegment(values.Prefix+"-"+values.Date+"-"+values.Time, env) + format.Ext()
}

func expandOutputNameTemplate(values Values, env *state.LocalEnv) string {
	expandedName, err := expandTemplate(config.OutputNameTemplateFieldName, env.Cfg.Output.NameTemplate, values)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(filepath.FromSlash(expandedName))
}

// assemblePathWithSubdirs takes an expanded template name (which may contain
// path separators for subdirectories) and assembles it into a full output path,
// cleaning and transliterating segments as needed
func assemblePathWithSubdirs(outDir, expandedName string, format config.OutputFmt, env *state.LocalEnv) string {
	pathSegments := splitAndCleanPath(expandedName)

	if len(pathSegments) == 0 {
		return filepath.Join(outDir, buildDefaultFileName(Values{Prefix: defaultPrefix}, format, env))
	}

	fileName := cleanPathSegment(pathSegments[len(pathSegments)-1], env) + format.Ext()
	dirParts := make([]string, 0, len(pathSegments)+1)
	dirParts = append(dirParts, outDir)

	for _, segment := range pathSegments[:len(pathSegments)-1] {
		dirParts = append(dirParts, cleanPathSegment(segment, env))
	}

	dirParts = append(dirParts, fileName)
	return filepath.Join(dirParts...)
}

// splitAndCleanPath drops empty, "." and ".." segments so template cannot
// escape destination directory.
func splitAndCleanPath(path string) []string {
	path = strings.TrimSuffix(path[len(filepath.VolumeName(path)):], string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for head, tail := filepath.Split(path); ; head, tail = filepath.Split(head) {
		if tail != "" && tail != "." && tail != ".." {
			segments = slices.Insert(segments, 0, tail)
		}
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" {
			break
		}
	}

	return segments
}

func cleanPathSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Output.Transliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}
