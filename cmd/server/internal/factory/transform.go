package factory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/core"
)

var transforms = map[string]core.Transform{
	"echo": func(s string) string {
		return "You sent: '" + s + "'"
	},
	"identity": func(s string) string { return s },
	"upper":    strings.ToUpper,
	"lower":    strings.ToLower,
	"reverse": func(s string) string {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r)
	},
}

// TransformNames lists the names accepted by NewTransform.
func TransformNames() []string {
	names := make([]string, 0, len(transforms))
	for name := range transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTransform returns the response transform registered under name.
func NewTransform(name string) (core.Transform, error) {
	t, ok := transforms[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown TRANSFORM: %s (supported: %s)", name, strings.Join(TransformNames(), ", "))
	}
	return t, nil
}
