package integration

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const module = "trafficcap/"

// layerRule restricts which packages may import anything under target.
type layerRule struct {
	target  string
	callers []string
}

var layerRules = []layerRule{
	{target: "internal/infra/blob", callers: []string{"internal/blob"}},
	{target: "internal/infra/persistence", callers: []string{"internal/core"}},
	{target: "internal/infra/events", callers: []string{"cmd/trafficd"}},
	{target: "internal/adapters", callers: []string{"cmd/trafficd", "internal/integration"}},
	{target: "internal/config", callers: []string{"cmd/trafficd"}},
}

// own packages may also import the target (backends sharing helpers, tests).
func allowed(rule layerRule, importer string) bool {
	if within(importer, rule.target) {
		return true
	}
	for _, c := range rule.callers {
		if within(importer, c) {
			return true
		}
	}
	return false
}

func within(pkgPath, prefix string) bool {
	rel := strings.TrimSuffix(strings.TrimPrefix(pkgPath, module), "_test")
	rel = strings.TrimSuffix(rel, ".test")
	return rel == prefix || strings.HasPrefix(rel, prefix+"/")
}

func TestLayering(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, module+"...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	if len(pkgs) == 0 {
		t.Fatalf("no packages loaded")
	}

	violations := map[string]struct{}{}
	for _, pkg := range pkgs {
		for imp := range pkg.Imports {
			if !strings.HasPrefix(imp, module) {
				continue
			}
			for _, rule := range layerRules {
				if within(imp, rule.target) && !allowed(rule, pkg.PkgPath) {
					violations[pkg.PkgPath+" -> "+imp] = struct{}{}
				}
			}
		}
	}
	if len(violations) == 0 {
		return
	}
	list := make([]string, 0, len(violations))
	for v := range violations {
		list = append(list, v)
	}
	sort.Strings(list)
	t.Fatalf("layering violations:\n%s", strings.Join(list, "\n"))
}

// The domain package and the in-memory store stay free of internal imports.
func TestLeafPackagesStayLeaves(t *testing.T) {
	leaves := map[string][]string{
		"pkg/domain":                        nil,
		"internal/infra/persistence/memory": {"pkg/domain"},
		"internal/infra/persistence/sqlite": {"pkg/domain", "internal/infra/persistence/memory"},
		"internal/infra/blob/memory":        {"internal/blob/core"},
		"internal/infra/blob/fs":            {"internal/blob/core"},
	}
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	patterns := make([]string, 0, len(leaves))
	for p := range leaves {
		patterns = append(patterns, module+p)
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	for _, pkg := range pkgs {
		permitted := leaves[strings.TrimPrefix(pkg.PkgPath, module)]
		for imp := range pkg.Imports {
			if !strings.HasPrefix(imp, module) {
				continue
			}
			ok := false
			for _, p := range permitted {
				if imp == module+p {
					ok = true
				}
			}
			if !ok {
				t.Errorf("%s must not import %s", pkg.PkgPath, imp)
			}
		}
	}
}
