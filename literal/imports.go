package literal

import (
	"go/token"
	"sort"
	"strconv"
	"strings"
)

// Import is one import spec an encoded expression depends on.
type Import struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Imports hands out collision-free local names for import paths.
//
// The same Imports value is shared by everything written into one generated
// file, so the declared result type and the encoded body agree on names.
type Imports struct {
	byPath map[string]string
	byName map[string]string
}

// NewImports returns an empty set.
func NewImports() *Imports {
	return &Imports{
		byPath: map[string]string{},
		byName: map[string]string{},
	}
}

// Reserve marks name as taken by something other than an import, such as
// the declaration the file defines.
func (im *Imports) Reserve(name string) {
	if _, taken := im.byName[name]; !taken {
		im.byName[name] = ""
	}
}

// Use returns the local name for path, assigning one derived from name on
// first use. A name already bound to another path gets a numeric suffix.
func (im *Imports) Use(path, name string) string {
	if local, ok := im.byPath[path]; ok {
		return local
	}
	name = sanitize(name)
	if name == "" {
		name = guessName(path)
	}
	local := name
	for i := 2; ; i++ {
		if _, taken := im.byName[local]; !taken {
			break
		}
		local = name + strconv.Itoa(i)
	}
	im.byPath[path] = local
	im.byName[local] = path
	return local
}

// Lookup returns the local name already assigned to path.
func (im *Imports) Lookup(path string) (string, bool) {
	local, ok := im.byPath[path]
	return local, ok
}

// List returns every assigned import sorted by path.
func (im *Imports) List() []Import {
	out := make([]Import, 0, len(im.byPath))
	for path, name := range im.byPath {
		out = append(out, Import{Path: path, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// guessName derives a package name from an import path:
// "gopkg.in/yaml.v3" -> "yaml", "github.com/a/go-thing/v2" -> "thing".
func guessName(path string) string {
	elems := strings.Split(path, "/")
	name := elems[len(elems)-1]
	if len(elems) > 1 && isMajorVersion(name) {
		name = elems[len(elems)-2]
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "go-")
	if s := sanitize(name); s != "" {
		return s
	}
	return "pkg"
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

// sanitize turns s into a usable identifier, or "" when nothing survives.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.':
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || out == "_" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	if token.IsKeyword(out) {
		out += "pkg"
	}
	return out
}
