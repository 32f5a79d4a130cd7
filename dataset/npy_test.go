package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNPY_RoundTrip(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	var buf bytes.Buffer
	require.NoError(t, writeNPY(&buf, []int{2, 3}, data))

	// The body must start on a 64-byte boundary.
	header := buf.Bytes()
	assert.Equal(t, npyMagic, header[:6])
	assert.Equal(t, byte(1), header[6])
	assert.Equal(t, 0, (buf.Len()-len(data)*8)%64)

	shape, got, err := readNPY(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, shape)
	assert.Equal(t, data, got)
}

func TestNPY_OneDimensionalShape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeNPY(&buf, []int{4}, []float64{1, 2, 3, 4}))

	// NumPy writes one-dimensional shapes with a trailing comma.
	assert.Contains(t, buf.String(), "(4,)")

	shape, data, err := readNPY(&buf, false)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, shape)
	assert.Len(t, data, 4)
}

func TestNPY_MetadataOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeNPY(&buf, []int{3, 2, 2}, make([]float64, 12)))

	shape, data, err := readNPY(&buf, true)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 2}, shape)
	assert.Nil(t, data, "metadata-only read must not load the payload")
}

func TestNPY_RejectsWrongDtype(t *testing.T) {
	// Hand-build a header declaring float32.
	dict := "{'descr': '<f4', 'fortran_order': False, 'shape': (2,), }"
	pad := (64 - (10+len(dict)+1)%64) % 64
	dict += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	buf.Write([]byte{byte(len(dict)), byte(len(dict) >> 8)})
	buf.WriteString(dict)
	buf.Write(make([]byte, 8))

	_, _, err := readNPY(&buf, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float64")
}

func TestNPY_RejectsBadMagic(t *testing.T) {
	_, _, err := readNPY(bytes.NewReader([]byte("not a tensor")), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestCSVTensor_SingleRow(t *testing.T) {
	shape, data, err := readCSVTensor(strings.NewReader("1.5,2,3.25\n"))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, shape)
	assert.Equal(t, []float64{1.5, 2, 3.25}, data)
}

func TestCSVTensor_TwoDimensional(t *testing.T) {
	shape, data, err := readCSVTensor(strings.NewReader("1,2\n3,4\n5,6\n"))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, shape)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, data)
}

func TestCSVTensor_RejectsRaggedRows(t *testing.T) {
	_, _, err := readCSVTensor(strings.NewReader("1,2\n3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ragged")
}

func TestCSVTensor_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCSVTensor(&buf, []int{2, 2}, []float64{0.5, 1, 1.5, 2}))

	shape, data, err := readCSVTensor(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, shape)
	assert.Equal(t, []float64{0.5, 1, 1.5, 2}, data)
}
