package embedstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"github.com/dshills/gamesearch-mcp/internal/similarity"
)

// File format constants
const (
	// Magic identifies an embeddings file ("EMBD")
	Magic uint32 = 0x454D4244
	// Version is the only format version this package reads and writes
	Version uint16 = 1
	// HeaderSize is magic(4) + version(2) + dimension(2) + count(4)
	HeaderSize = 12

	// FileName is the conventional name of a collection's embeddings file
	FileName = "embeddings.bin"
)

var (
	// ErrNotFound is returned when the embeddings file does not exist
	ErrNotFound = errors.New("embeddings file not found")
	// ErrInvalidFormat is returned when the magic constant does not match
	ErrInvalidFormat = errors.New("invalid embeddings file format")
	// ErrUnsupportedVersion is returned for a version this package cannot read
	ErrUnsupportedVersion = errors.New("unsupported embeddings version")
	// ErrCorrupted is returned when the file size disagrees with its header
	ErrCorrupted = errors.New("embeddings file corrupted")
)

// Encode serializes vectors into the binary embeddings format.
// Every vector must have exactly dimension elements.
func Encode(vectors [][]float32, dimension int) ([]byte, error) {
	if dimension < 0 || dimension > math.MaxUint16 {
		return nil, fmt.Errorf("dimension %d out of range [0, %d]", dimension, math.MaxUint16)
	}
	if uint64(len(vectors)) > math.MaxUint32 {
		return nil, fmt.Errorf("too many vectors: %d", len(vectors))
	}

	buf := make([]byte, HeaderSize+len(vectors)*dimension*4)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], Version)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(dimension))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(vectors)))

	offset := HeaderSize
	for i, vec := range vectors {
		if len(vec) != dimension {
			return nil, fmt.Errorf("%w: vector %d has %d elements, want %d",
				similarity.ErrDimensionMismatch, i, len(vec), dimension)
		}
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
			offset += 4
		}
	}

	return buf, nil
}

// Decode parses a binary embeddings buffer, validating the header and size.
func Decode(data []byte) ([][]float32, int, error) {
	if len(data) >= 4 && binary.LittleEndian.Uint32(data[0:4]) != Magic {
		return nil, 0, ErrInvalidFormat
	}
	if len(data) < HeaderSize {
		return nil, 0, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupted, len(data))
	}

	version := binary.LittleEndian.Uint16(data[4:6])
	if version != Version {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	dimension := int(binary.LittleEndian.Uint16(data[6:8]))
	count := int(binary.LittleEndian.Uint32(data[8:12]))

	expected := uint64(HeaderSize) + uint64(count)*uint64(dimension)*4
	if uint64(len(data)) != expected {
		return nil, 0, fmt.Errorf("%w: size mismatch (have %d bytes, header implies %d)",
			ErrCorrupted, len(data), expected)
	}

	vectors := make([][]float32, count)
	offset := HeaderSize
	for i := range vectors {
		vec := make([]float32, dimension)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
			offset += 4
		}
		vectors[i] = vec
	}

	return vectors, dimension, nil
}

// Save writes vectors to path atomically.
// Readers never observe a partially written file under path.
func Save(path string, vectors [][]float32, dimension int) error {
	buf, err := Encode(vectors, dimension)
	if err != nil {
		return fmt.Errorf("encode embeddings: %w", err)
	}
	if err := AtomicWrite(path, buf); err != nil {
		return fmt.Errorf("write embeddings: %w", err)
	}
	return nil
}

// Load reads vectors from path and returns them with their dimension.
func Load(path string) ([][]float32, int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read embeddings: %w", err)
	}

	vectors, dimension, err := Decode(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return vectors, dimension, nil
}
