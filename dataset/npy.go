package dataset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// The default tensor payload is the NumPy .npy container: a fixed magic,
// a format version, and a Python-dict header carrying dtype, memory order
// and shape, followed by the raw array body. The header is self-delimiting,
// which is what makes metadata-only reads possible.

var npyMagic = []byte{0x93, 'N', 'U', 'M', 'P', 'Y'}

var (
	npyDescrRE   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyFortranRE = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShapeRE   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// readNPY parses an .npy stream. In metadata-only mode the payload is not
// consumed and the returned data is nil. The dtype must be little-endian
// float64.
func readNPY(r io.Reader, metadataOnly bool) ([]int, []float64, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, fmt.Errorf("invalid tensor file: %v", err)
	}
	if string(header[:6]) != string(npyMagic) {
		return nil, nil, fmt.Errorf("invalid tensor file: bad magic")
	}
	major := header[6]

	var headerLen int
	switch major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, nil, fmt.Errorf("invalid tensor file: %v", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, nil, fmt.Errorf("invalid tensor file: %v", err)
		}
		headerLen = int(n)
	default:
		return nil, nil, fmt.Errorf("invalid tensor file: unsupported version %d", major)
	}

	dict := make([]byte, headerLen)
	if _, err := io.ReadFull(r, dict); err != nil {
		return nil, nil, fmt.Errorf("invalid tensor file: %v", err)
	}

	descr := npyDescrRE.FindSubmatch(dict)
	fortran := npyFortranRE.FindSubmatch(dict)
	shapeMatch := npyShapeRE.FindSubmatch(dict)
	if descr == nil || fortran == nil || shapeMatch == nil {
		return nil, nil, fmt.Errorf("invalid tensor file: malformed header")
	}
	if string(descr[1]) != "<f8" {
		return nil, nil, fmt.Errorf("Tensor datatype must be float64.")
	}
	if string(fortran[1]) != "False" {
		return nil, nil, fmt.Errorf("invalid tensor file: Fortran order is not supported")
	}

	var shape []int
	for _, part := range strings.Split(string(shapeMatch[1]), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, nil, fmt.Errorf("invalid tensor file: malformed shape")
		}
		shape = append(shape, n)
	}

	if metadataOnly {
		return shape, nil, nil
	}

	count := 1
	for _, d := range shape {
		count *= d
	}
	data := make([]float64, count)
	if err := binary.Read(bufio.NewReader(r), binary.LittleEndian, data); err != nil {
		return nil, nil, fmt.Errorf("invalid tensor file: %v", err)
	}
	return shape, data, nil
}

// writeNPY emits a version 1.0 .npy stream: float64, C order, header padded
// to 64-byte alignment.
func writeNPY(w io.Writer, shape []int, data []float64) error {
	count := 1
	parts := make([]string, len(shape))
	for i, d := range shape {
		count *= d
		parts[i] = strconv.Itoa(d)
	}
	if count != len(data) {
		return fmt.Errorf("tensor shape does not cover %d values", len(data))
	}

	shapeStr := strings.Join(parts, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	dict := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%s), }", shapeStr)

	// Magic (6) + version (2) + header length (2) + dict + newline, padded
	// with spaces so the body starts on a 64-byte boundary.
	total := 10 + len(dict) + 1
	pad := (64 - total%64) % 64
	dict += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(npyMagic); err != nil {
		return err
	}
	if _, err := bw.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(dict))); err != nil {
		return err
	}
	if _, err := bw.WriteString(dict); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, data); err != nil {
		return err
	}
	return bw.Flush()
}

// readCSVTensor parses a CSV tensor: rows of comma-separated floats with no
// header. A single row yields a one-dimensional shape; multiple rows yield
// rows x columns. Ragged rows are an error.
func readCSVTensor(r io.Reader) ([]int, []float64, error) {
	var data []float64
	rows, cols := 0, -1

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if cols < 0 {
			cols = len(parts)
		} else if len(parts) != cols {
			return nil, nil, fmt.Errorf("invalid tensor file: ragged CSV rows")
		}
		for _, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid tensor file: %v", err)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("invalid tensor file: %v", err)
	}
	if rows == 0 {
		return nil, nil, fmt.Errorf("invalid tensor file: empty CSV tensor")
	}

	if rows == 1 {
		return []int{cols}, data, nil
	}
	return []int{rows, cols}, data, nil
}

// writeCSVTensor renders a one- or two-dimensional tensor as CSV.
func writeCSVTensor(w io.Writer, shape []int, data []float64) error {
	rows, cols := 1, 0
	switch len(shape) {
	case 1:
		cols = shape[0]
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return fmt.Errorf("CSV tensors must have one or two dimensions")
	}
	if rows*cols != len(data) {
		return fmt.Errorf("tensor shape does not cover %d values", len(data))
	}

	bw := bufio.NewWriter(w)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(
				strconv.FormatFloat(data[r*cols+c], 'g', -1, 64)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
