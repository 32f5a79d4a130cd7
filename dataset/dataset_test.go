package dataset

import (
	"bytes"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billy "github.com/go-git/go-billy/v5"
)

func writeTestNPY(t *testing.T, fs billy.Filesystem, path string, shape []int, data []float64) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writeNPY(&buf, shape, data))
	require.NoError(t, util.WriteFile(fs, path, buf.Bytes(), 0o644))
}

func writeTestFile(t *testing.T, fs billy.Filesystem, path, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLoad_RecognizesKinds(t *testing.T) {
	fs := memfs.New()
	writeTestNPY(t, fs, "sample1/s1.ten.npy", []int{4}, []float64{1, 2, 3, 4})
	writeTestFile(t, fs, "sample1/lbl.cat.txt", "cat_a\n")
	writeTestFile(t, fs, "sample1/links.links.csv", "vtx/0 vtx/1\n")
	writeTestNPY(t, fs, "sample1/vtx/feat.ten.npy", []int{2, 3}, make([]float64, 6))
	writeTestFile(t, fs, "kinds.class.txt", "cat_a\ncat_b\n")

	ds, err := Load(NewFS(fs), "", false)
	require.NoError(t, err)

	class, ok := ds.Children["kinds"].(*Class)
	require.True(t, ok)
	assert.Equal(t, []string{"cat_a", "cat_b"}, class.Categories)

	sample, ok := ds.Children["sample1"].(*Directory)
	require.True(t, ok)

	tensor, ok := sample.Children["s1"].(*Tensor)
	require.True(t, ok)
	assert.Equal(t, []int{4}, tensor.Dimensions)
	assert.Equal(t, []float64{1, 2, 3, 4}, tensor.Data)
	assert.Equal(t, SubtypeDefault, tensor.Subtype)

	cat, ok := sample.Children["lbl"].(*Category)
	require.True(t, ok)
	assert.Equal(t, []string{"cat_a"}, cat.Categories)

	links, ok := sample.Children["links"].(*Links)
	require.True(t, ok)
	assert.True(t, links.Links[Link{SrcNode: "vtx", SrcIndex: 0, DstNode: "vtx", DstIndex: 1}])

	vtx, ok := sample.Children["vtx"].(*Directory)
	require.True(t, ok)
	feat, ok := vtx.Children["feat"].(*Tensor)
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, feat.Dimensions)
}

func TestLoad_MetadataOnlySkipsPayload(t *testing.T) {
	fs := memfs.New()
	writeTestNPY(t, fs, "sample1/s1.ten.npy", []int{2, 2}, []float64{1, 2, 3, 4})

	ds, err := Load(NewFS(fs), "", true)
	require.NoError(t, err)

	sample := ds.Children["sample1"].(*Directory)
	tensor := sample.Children["s1"].(*Tensor)
	assert.Equal(t, []int{2, 2}, tensor.Dimensions)
	assert.Nil(t, tensor.Data)
}

func TestLoad_CSVTensor(t *testing.T) {
	fs := memfs.New()
	writeTestFile(t, fs, "sample1/s1.ten.csv", "1,2\n3,4\n")

	ds, err := Load(NewFS(fs), "", false)
	require.NoError(t, err)

	tensor := ds.Children["sample1"].(*Directory).Children["s1"].(*Tensor)
	assert.Equal(t, []int{2, 2}, tensor.Dimensions)
	assert.Equal(t, SubtypeCSV, tensor.Subtype)
	assert.Equal(t, []float64{1, 2, 3, 4}, tensor.Data)
}

func TestLoad_InvalidTensorReportsPath(t *testing.T) {
	fs := memfs.New()
	writeTestFile(t, fs, "sample1/bad.ten.npy", "garbage")

	_, err := Load(NewFS(fs), "", true)
	require.Error(t, err)
	de, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, "/sample1/bad.ten.npy", de.Path)
}

func TestLoad_MalformedLinkReportsPath(t *testing.T) {
	fs := memfs.New()
	writeTestFile(t, fs, "sample1/links.links.csv", "vtx/0\n")

	_, err := Load(NewFS(fs), "", true)
	require.Error(t, err)
	de, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, "/sample1/links.links.csv", de.Path)
}

func TestLoad_DuplicateClassEntries(t *testing.T) {
	fs := memfs.New()
	writeTestFile(t, fs, "kinds.class.txt", "cat_a\ncat_a\n")

	_, err := Load(NewFS(fs), "", true)
	require.Error(t, err)
	de, ok := err.(*Error)
	require.True(t, ok)
	assert.Contains(t, de.Message, "duplicate")
	assert.Equal(t, "/kinds.class.txt", de.Path)
}

func TestParseLink(t *testing.T) {
	link, err := parseLink("vtx/0 other/12")
	require.NoError(t, err)
	assert.Equal(t, Link{SrcNode: "vtx", SrcIndex: 0, DstNode: "other", DstIndex: 12}, link)

	link, err = parseLink("SOURCE vtx/3")
	require.NoError(t, err)
	assert.Equal(t, Link{SrcNode: NodeSource, SrcIndex: -1, DstNode: "vtx", DstIndex: 3}, link)

	link, err = parseLink("vtx/3 SINK")
	require.NoError(t, err)
	assert.Equal(t, Link{SrcNode: "vtx", SrcIndex: 3, DstNode: NodeSink, DstIndex: -1}, link)

	for _, bad := range []string{
		"vtx/0",            // missing destination
		"vtx vtx/0",        // bare name that is not a sentinel
		"SINK vtx/0",       // sink on the source side
		"vtx/0 SOURCE",     // source on the destination side
		"vtx/-1 vtx/0",     // negative index
		"Vtx/0 vtx/1",      // invalid node name
		"vtx/0 vtx/1 more", // trailing garbage
	} {
		_, err := parseLink(bad)
		assert.Error(t, err, "line %q", bad)
	}
}

func TestLinkReverse(t *testing.T) {
	link := Link{SrcNode: "a", SrcIndex: 1, DstNode: "b", DstIndex: 2}
	assert.Equal(t, Link{SrcNode: "b", SrcIndex: 2, DstNode: "a", DstIndex: 1}, link.Reverse())
	assert.Equal(t, link, link.Reverse().Reverse())
}

func TestDumpLoad_RoundTrip(t *testing.T) {
	original := &Dataset{Children: map[string]File{
		"kinds": &Class{Name: "kinds", Categories: []string{"cat_a", "cat_b"}},
		"sample1": &Directory{Name: "sample1", Children: map[string]File{
			"s1": &Tensor{
				Name: "s1", Dimensions: []int{2, 2},
				Data: []float64{1, 2, 3, 4}, Subtype: SubtypeDefault,
			},
			"lbl": &Category{Name: "lbl", Categories: []string{"cat_b"}},
			"vtx": &Directory{Name: "vtx", Children: map[string]File{
				"feat": &Tensor{
					Name: "feat", Dimensions: []int{2, 3},
					Data: []float64{1, 2, 3, 4, 5, 6}, Subtype: SubtypeDefault,
				},
			}},
			"links": &Links{Name: "links", Links: map[Link]bool{
				{SrcNode: "vtx", SrcIndex: 0, DstNode: "vtx", DstIndex: 1}: true,
				{SrcNode: "vtx", SrcIndex: 1, DstNode: "vtx", DstIndex: 0}: true,
			}},
		}},
	}}

	fs := memfs.New()
	op := NewFS(fs)
	require.NoError(t, original.Dump(op, ""))

	loaded, err := Load(op, "", false)
	require.NoError(t, err)
	assert.Equal(t, original.Children, loaded.Children)
}
