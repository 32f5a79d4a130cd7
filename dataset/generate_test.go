package dataset

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easeml/easemlschema/schema"
)

func mustSchema(t *testing.T, src string) *schema.Schema {
	t.Helper()
	s, err := schema.FromJSON([]byte(src))
	require.NoError(t, err)
	return s
}

var roundTripSchemas = map[string]string{
	"singletons": `{
		"nodes": {
			"img": {"singleton": true, "type": "tensor", "dim": [4, 4]},
			"lbl": {"singleton": true, "type": "category", "class": "kinds"}
		},
		"classes": {"kinds": {"dim": 3}}
	}`,
	"directed acyclic": `{
		"nodes": {"n": {
			"fields": {"feat": {"type": "tensor", "dim": [2]}},
			"links": {"n": [0, 2]}
		}}
	}`,
	"undirected": `{
		"nodes": {"n": {
			"fields": {"feat": {"type": "tensor", "dim": [2]}},
			"links": {"n": [0, 1]}
		}},
		"ref-constraints": {"undirected": true}
	}`,
	"cyclic with fan-in": `{
		"nodes": {"n": {
			"fields": {
				"feat": {"type": "tensor", "dim": [3]},
				"tag": {"type": "category", "class": "kinds"}
			},
			"links": {"n": [0, 3]}
		}},
		"classes": {"kinds": {"dim": 5}},
		"ref-constraints": {"cyclic": true, "fan-in": true}
	}`,
}

func TestGenerate_InferMatchRoundTrip(t *testing.T) {
	for name, src := range roundTripSchemas {
		t.Run(name, func(t *testing.T) {
			s := mustSchema(t, src)

			ds, err := Generate(s, GenerateConfig{Samples: 5, Instances: 8, Seed: 7})
			require.NoError(t, err)

			inferred, err := ds.InferSchema()
			require.NoError(t, err)

			resolved, ok := s.MatchBuild(inferred)
			require.True(t, ok, "generated dataset must match its schema")
			assert.Empty(t, resolved.SrcDims)
		})
	}
}

func TestGenerate_ThroughOpenerRoundTrip(t *testing.T) {
	s := mustSchema(t, roundTripSchemas["cyclic with fan-in"])

	ds, err := Generate(s, GenerateConfig{Samples: 3, Instances: 6, Seed: 11})
	require.NoError(t, err)

	fs := memfs.New()
	op := NewFS(fs)
	require.NoError(t, ds.Dump(op, ""))

	// Validation goes through metadata-only loading: tensor payloads stay
	// on disk.
	loaded, err := Load(op, "", true)
	require.NoError(t, err)

	inferred, err := loaded.InferSchema()
	require.NoError(t, err)
	assert.True(t, s.Match(inferred))
}

func TestGenerate_Deterministic(t *testing.T) {
	s := mustSchema(t, roundTripSchemas["directed acyclic"])
	cfg := GenerateConfig{Samples: 2, Instances: 4, Seed: 42}

	first, err := Generate(s, cfg)
	require.NoError(t, err)
	second, err := Generate(s, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Children, second.Children)
}

func TestGenerate_ClassLabels(t *testing.T) {
	s := mustSchema(t, roundTripSchemas["singletons"])

	ds, err := Generate(s, GenerateConfig{Samples: 1, Instances: 1, Seed: 1})
	require.NoError(t, err)

	class, ok := ds.Children["kinds"].(*Class)
	require.True(t, ok, "class files appear at the dataset root")
	require.Len(t, class.Categories, 3)

	seen := map[string]bool{}
	for _, label := range class.Categories {
		assert.False(t, seen[label], "labels must be distinct")
		seen[label] = true
	}
}

func TestGenerate_SampleLayout(t *testing.T) {
	s := mustSchema(t, roundTripSchemas["cyclic with fan-in"])

	ds, err := Generate(s, GenerateConfig{Samples: 2, Instances: 5, Seed: 3})
	require.NoError(t, err)

	var sampleCount int
	for _, child := range ds.Children {
		dir, ok := child.(*Directory)
		if !ok {
			continue
		}
		sampleCount++

		node, ok := dir.Children["n"].(*Directory)
		require.True(t, ok)

		feat := node.Children["feat"].(*Tensor)
		assert.Equal(t, []int{5, 3}, feat.Dimensions, "leading dimension counts instances")
		assert.Len(t, feat.Data, 15)

		tag := node.Children["tag"].(*Category)
		assert.Len(t, tag.Categories, 5, "one label per instance")

		links, ok := dir.Children["links"].(*Links)
		require.True(t, ok, "non-singleton nodes imply a links file")
		for link := range links.Links {
			assert.Equal(t, "n", link.SrcNode)
			assert.Equal(t, "n", link.DstNode)
			assert.GreaterOrEqual(t, link.SrcIndex, 0)
			assert.Less(t, link.DstIndex, 5)
		}
	}
	assert.Equal(t, 2, sampleCount)
}

func TestGenerate_UndirectedEmitsReverses(t *testing.T) {
	s := mustSchema(t, roundTripSchemas["undirected"])

	ds, err := Generate(s, GenerateConfig{Samples: 4, Instances: 8, Seed: 5})
	require.NoError(t, err)

	for _, child := range ds.Children {
		dir, ok := child.(*Directory)
		if !ok {
			continue
		}
		links := dir.Children["links"].(*Links)
		for link := range links.Links {
			assert.True(t, links.Links[link.Reverse()],
				"undirected generation inserts every edge with its reverse")
		}
	}
}

func TestGenerate_AcyclicStaysAcyclic(t *testing.T) {
	s := mustSchema(t, roundTripSchemas["directed acyclic"])

	ds, err := Generate(s, GenerateConfig{Samples: 6, Instances: 9, Seed: 13})
	require.NoError(t, err)

	for _, child := range ds.Children {
		dir, ok := child.(*Directory)
		if !ok {
			continue
		}
		links := dir.Children["links"].(*Links)
		assert.False(t, links.IsCyclic(false))
		assert.False(t, links.IsFanIn(false))
	}
}

func TestGenerate_RejectsVariableSchema(t *testing.T) {
	s := mustSchema(t, `{
		"nodes": {"img": {"singleton": true, "type": "tensor", "dim": ["d"]}}
	}`)

	_, err := Generate(s, DefaultGenerateConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved")
}
