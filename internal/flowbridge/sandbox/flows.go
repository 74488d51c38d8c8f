package sandbox

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/tansive/flowbridge/internal/common/apperrors"
)

//go:embed flows/*.js
var builtinFlows embed.FS

var flowNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

var (
	ErrFlow        = apperrors.New("flow store error")
	ErrFlowName    = ErrFlow.New("invalid flow name").SetStatusCode(400)
	ErrFlowMissing = ErrFlow.New("flow not found").SetStatusCode(404)
	ErrFlowRead    = ErrFlow.New("unable to read flow").SetStatusCode(500)
)

// FlowStore resolves flow names to JavaScript sources. Files in dir take precedence over the
// built-in flows; binary files are refused.
type FlowStore struct {
	dir string
}

func NewFlowStore(dir string) *FlowStore {
	return &FlowStore{dir: dir}
}

// Get returns the source of the named flow.
func (s *FlowStore) Get(name string) (string, apperrors.Error) {
	if !flowNamePattern.MatchString(name) {
		return "", ErrFlowName.Msg("invalid flow name: " + name)
	}
	file := name + ".js"
	if s.dir != "" {
		b, err := os.ReadFile(filepath.Join(s.dir, file))
		if err == nil {
			if kind, _ := filetype.Match(b); kind != filetype.Unknown {
				return "", ErrFlowRead.Msg(file + " is a " + kind.MIME.Value + " file, not a flow script")
			}
			return string(b), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", ErrFlowRead.Err(err)
		}
	}
	b, err := builtinFlows.ReadFile("flows/" + file)
	if err != nil {
		return "", ErrFlowMissing.Msg("flow not found: " + name)
	}
	return string(b), nil
}

// Names lists every available flow.
func (s *FlowStore) Names() []string {
	seen := map[string]bool{}
	collect := func(fsys fs.FS, dir string) {
		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			name := strings.TrimSuffix(e.Name(), ".js")
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".js") && flowNamePattern.MatchString(name) {
				seen[name] = true
			}
		}
	}
	collect(builtinFlows, "flows")
	if s.dir != "" {
		collect(os.DirFS(s.dir), ".")
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
