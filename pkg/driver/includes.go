package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/raymyers/ralph-bindgen/pkg/config"
	"github.com/raymyers/ralph-bindgen/pkg/cpp"
)

// FollowIncludes appends the files named by quoted #include directives as
// extra units, transitively and in discovery order. Each file becomes a unit
// once. Angled includes are system headers and are not followed.
func FollowIncludes(inputs []Input, includePaths []string, cfg config.Config) ([]Input, error) {
	out := append([]Input(nil), inputs...)
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		seen[filepath.Clean(in.Name)] = true
	}
	search := cpp.SearchPath(includePaths)
	for i := 0; i < len(out); i++ {
		pre, err := cpp.Preprocess(out[i].Text, out[i].Name, cpp.PreprocessorOptions{
			Defines:   cfg.Defines,
			Undefines: cfg.Undefines,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", out[i].Name, err)
		}
		for _, inc := range pre.Includes {
			if inc.Kind != cpp.IncludeQuoted {
				continue
			}
			path, err := search.Resolve(out[i].Name, inc)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", out[i].Name, inc.Loc.Line, err)
			}
			if seen[path] {
				continue
			}
			seen[path] = true
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			out = append(out, Input{Name: path, Text: string(data)})
		}
	}
	return out, nil
}
