package stage

import (
	"bufio"
	"bytes"
	"go/token"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/bake/internal/diag"
)

var positionRE = regexp.MustCompile(`^(.+?\.go):(\d+)(?::(\d+))?$`)

// parsePosition parses "file:line[:col]". Relative file names are joined
// to dir.
func parsePosition(s, dir string) (token.Position, bool) {
	m := positionRE.FindStringSubmatch(s)
	if m == nil {
		return token.Position{}, false
	}
	pos := token.Position{Filename: m[1]}
	pos.Line, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		pos.Column, _ = strconv.Atoi(m[3])
	}
	if dir != "" && !filepath.IsAbs(pos.Filename) {
		pos.Filename = filepath.Join(dir, pos.Filename)
	}
	return pos, true
}

var lineRE = regexp.MustCompile(`^(.+?\.go:\d+(?::\d+)?): (.*)$`)

// ParseOutput turns go build output into diagnostics. Lines with a
// position start a diagnostic; indented lines continue the previous one;
// "#" package headers are dropped. Output without any positioned line
// becomes one diagnostic holding all of it.
func ParseOutput(out []byte, dir string) []diag.Diagnostic {
	var diags []diag.Diagnostic
	var loose []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.TrimSpace(line) == "", strings.HasPrefix(line, "# "):
			continue
		case strings.HasPrefix(line, "\t") && len(diags) > 0:
			diags[len(diags)-1].Message += "\n" + strings.TrimSpace(line)
			continue
		}
		if m := lineRE.FindStringSubmatch(line); m != nil {
			pos, _ := parsePosition(m[1], dir)
			diags = append(diags, diag.New("go/build", diag.CategoryCompilation, pos, "%s", m[2]))
			continue
		}
		loose = append(loose, line)
	}
	if len(diags) == 0 && len(loose) > 0 {
		diags = append(diags, diag.New("go/build", diag.CategoryCompilation, token.Position{}, "%s", strings.Join(loose, "\n")))
	}
	return diags
}
