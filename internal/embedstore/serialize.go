package embedstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SerializeMatrix flattens an n×d float32 matrix into a little-endian byte
// slice, row by row. Each float32 occupies 4 bytes in the output.
func SerializeMatrix(vectors [][]float32) []byte {
	buf := new(bytes.Buffer)
	for _, v := range vectors {
		binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

// DeserializeMatrix decodes a little-endian byte slice into n vectors of
// equal width. The byte length must be a multiple of 4 and the float count
// a multiple of n; anything else means the file pair is out of sync.
func DeserializeMatrix(data []byte, n int) ([][]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embeddings byte length %d not a multiple of 4", len(data))
	}
	floats := len(data) / 4
	if n == 0 {
		if floats != 0 {
			return nil, fmt.Errorf("embeddings present but chunk count is 0")
		}
		return nil, nil
	}
	if floats%n != 0 {
		return nil, fmt.Errorf("%d floats do not divide into %d whole vectors", floats, n)
	}
	dim := floats / n
	if dim == 0 {
		return nil, fmt.Errorf("embeddings file empty but chunk count is %d", n)
	}

	buf := bytes.NewReader(data)
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		if err := binary.Read(buf, binary.LittleEndian, &vectors[i]); err != nil {
			return nil, fmt.Errorf("failed to decode vector %d: %w", i, err)
		}
	}
	return vectors, nil
}
