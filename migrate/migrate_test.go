package migrate

import (
	"testing"

	"github.com/flowweaver/fw/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRewritesLegacyPathRoutes(t *testing.T) {
	wf := &model.Workflow{
		Macros: []model.Macro{{Kind: model.MacroPath, Path: &model.PathMacro{Steps: []model.PathStep{
			{Node: "a", Route: "success"},
			{Node: "b", Route: "failure"},
			{Node: "c", Route: "retry"},
		}}}},
	}
	applied := Run(wf)
	require.Contains(t, applied, "normalize-path-route-aliases")

	steps := wf.Macros[0].Path.Steps
	assert.Equal(t, "ok", steps[0].Route)
	assert.Equal(t, "fail", steps[1].Route)
	assert.Equal(t, "retry", steps[2].Route, "custom routes pass through untouched")
}

func TestRunDedupesScopeChildren(t *testing.T) {
	wf := &model.Workflow{
		Scopes: map[string][]string{"loop.iterate": {"a", "b", "a"}},
	}
	applied := Run(wf)
	require.Contains(t, applied, "dedupe-scope-children")
	assert.Equal(t, []string{"a", "b"}, wf.Scopes["loop.iterate"])
}

func TestRunDropsEmptyPortConfigs(t *testing.T) {
	one := 1
	wf := &model.Workflow{
		Instances: []*model.NodeInstance{{
			ID: "n1", NodeType: "t",
			Config: model.InstanceConfig{PortConfigs: []model.PortConfig{
				{PortName: "empty"},
				{PortName: "kept", Order: &one},
			}},
		}},
	}
	Run(wf)
	require.Len(t, wf.Instances[0].Config.PortConfigs, 1)
	assert.Equal(t, "kept", wf.Instances[0].Config.PortConfigs[0].PortName)
}

func TestRunIsIdempotent(t *testing.T) {
	wf := &model.Workflow{
		Macros: []model.Macro{{Kind: model.MacroPath, Path: &model.PathMacro{Steps: []model.PathStep{
			{Node: "a", Route: "success"},
			{Node: "b"},
		}}}},
		Scopes: map[string][]string{"loop.iterate": {"a", "a"}},
	}
	first := Run(wf)
	require.NotEmpty(t, first)

	second := Run(wf)
	assert.Empty(t, second, "a second run must change nothing")
}
