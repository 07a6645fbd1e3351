/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package prdiff

import (
	"cmp"
	"path"
	"slices"
	"strings"

	"chainguard.dev/pragent/patch"
)

// OtherLanguage groups files whose extension matches no detected language.
const OtherLanguage = "Other"

// extensions maps lower-cased language names, as reported by git hosts, to
// file extensions.
var extensions = map[string][]string{
	"c":           {".c", ".h"},
	"c#":          {".cs"},
	"c++":         {".cc", ".cpp", ".cxx", ".hh", ".hpp", ".hxx"},
	"css":         {".css"},
	"dart":        {".dart"},
	"dockerfile":  {".dockerfile"},
	"elixir":      {".ex", ".exs"},
	"go":          {".go"},
	"groovy":      {".groovy", ".gradle"},
	"hcl":         {".hcl", ".tf"},
	"html":        {".html", ".htm"},
	"java":        {".java"},
	"javascript":  {".js", ".jsx", ".mjs", ".cjs"},
	"kotlin":      {".kt", ".kts"},
	"lua":         {".lua"},
	"makefile":    {".mk", ".mak"},
	"markdown":    {".md"},
	"objective-c": {".m", ".mm"},
	"perl":        {".pl", ".pm"},
	"php":         {".php"},
	"python":      {".py", ".pyi"},
	"r":           {".r"},
	"ruby":        {".rb", ".rake"},
	"rust":        {".rs"},
	"scala":       {".scala", ".sc"},
	"scss":        {".scss"},
	"shell":       {".sh", ".bash", ".zsh"},
	"sql":         {".sql"},
	"swift":       {".swift"},
	"typescript":  {".ts", ".tsx", ".mts", ".cts"},
	"vue":         {".vue"},
	"yaml":        {".yaml", ".yml"},
}

// badExtensions are files the model gains nothing from reading.
var badExtensions = map[string]bool{
	".7z": true, ".bin": true, ".bmp": true, ".class": true, ".dll": true, ".dylib": true,
	".eot": true, ".exe": true, ".gif": true, ".gz": true, ".ico": true, ".jar": true,
	".jpeg": true, ".jpg": true, ".lock": true, ".mp3": true, ".mp4": true, ".o": true,
	".otf": true, ".pdf": true, ".png": true, ".pyc": true, ".so": true, ".svg": true,
	".tar": true, ".tgz": true, ".ttf": true, ".wasm": true, ".webp": true, ".woff": true,
	".woff2": true, ".zip": true,
}

// Group is the set of changed files written in one language.
type Group struct {
	Language string
	Files    []patch.FilePatch
}

func extension(name string) string {
	return strings.ToLower(path.Ext(name))
}

// IsValidFile reports whether name has an extension worth showing the model.
func IsValidFile(name string) bool {
	if strings.HasSuffix(name, "-lock.json") || strings.HasSuffix(name, ".min.js") {
		return false
	}
	return !badExtensions[extension(name)]
}

// LanguageOf returns the lower-cased language whose extensions include the
// extension of name, or "" when none does.
func LanguageOf(name string) string {
	ext := extension(name)
	if ext == "" {
		return ""
	}
	langs := make([]string, 0, len(extensions))
	for lang := range extensions {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	for _, lang := range langs {
		if slices.Contains(extensions[lang], ext) {
			return lang
		}
	}
	return ""
}

func byteOrder(languages map[string]int) []string {
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(languages[b], languages[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return names
}

// SortByLanguage groups files by language, largest language first, with
// unmatched files last under OtherLanguage. Binary and generated files are
// dropped.
func SortByLanguage(languages map[string]int, files []patch.FilePatch) []Group {
	var valid []patch.FilePatch
	for _, f := range files {
		if IsValidFile(f.Filename) {
			valid = append(valid, f)
		}
	}
	if len(languages) == 0 {
		return []Group{{Language: OtherLanguage, Files: valid}}
	}

	ordered := byteOrder(languages)
	known := map[string]bool{}
	for _, lang := range ordered {
		for _, ext := range extensions[strings.ToLower(lang)] {
			known[ext] = true
		}
	}

	var groups []Group
	for _, lang := range ordered {
		exts := extensions[strings.ToLower(lang)]
		var matched []patch.FilePatch
		for _, f := range valid {
			if slices.Contains(exts, extension(f.Filename)) {
				matched = append(matched, f)
			}
		}
		if len(matched) > 0 {
			groups = append(groups, Group{Language: lang, Files: matched})
		}
	}
	var rest []patch.FilePatch
	for _, f := range valid {
		if !known[extension(f.Filename)] {
			rest = append(rest, f)
		}
	}
	return append(groups, Group{Language: OtherLanguage, Files: rest})
}

// MainLanguage returns the lower-cased language of the pull request: the
// repository's largest language when the most common changed extension
// belongs to it, otherwise the first language owning that extension. It
// returns "" when either input is empty or nothing matches.
func MainLanguage(languages map[string]int, files []patch.FilePatch) string {
	if len(languages) == 0 || len(files) == 0 {
		return ""
	}
	counts := map[string]int{}
	var common string
	for _, f := range files {
		ext := extension(f.Filename)
		counts[ext]++
		if common == "" || counts[ext] > counts[common] {
			common = ext
		}
	}

	top := strings.ToLower(byteOrder(languages)[0])
	if slices.Contains(extensions[top], common) {
		return top
	}
	names := make([]string, 0, len(extensions))
	for name := range extensions {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if slices.Contains(extensions[name], common) {
			return name
		}
	}
	return ""
}
