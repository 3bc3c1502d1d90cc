package synth

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
)

// Owned lists the bake_*_gen.go files in dir that carry Header.
func Owned(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "bake_*_gen.go"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		ok, err := hasHeader(m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Stale lists the files Owned by bake in dir that are not in keep.
func Stale(dir string, keep map[string]bool) ([]string, error) {
	owned, err := Owned(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range owned {
		if !keep[f] {
			out = append(out, f)
		}
	}
	return out, nil
}

func hasHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if sc.Scan() {
		return sc.Text() == Header, nil
	}
	return false, sc.Err()
}
