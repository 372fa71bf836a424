package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Save writes entries to path in the .lmnc container format.
// Array order is preserved; offsets are aligned to HeaderAlignment.
func Save(path string, entries []Entry) error {
	header := Header{
		FormatVersion: FormatVersion,
		CreatedBy:     "lumen-go",
		CreatedAt:     time.Now().UTC(),
		Arrays:        make([]ArrayMeta, len(entries)),
	}

	// Lay out the data section and hash it while computing offsets.
	hash := sha256.New()
	var offset int64
	for i, e := range entries {
		if e.Name == "" {
			return fmt.Errorf("entry %d has empty name", i)
		}
		want := elemCount(e.Shape) * e.DType.Size()
		if len(e.Data) != want {
			return fmt.Errorf("entry %q: %d data bytes for shape %v %s (want %d)",
				e.Name, len(e.Data), e.Shape, e.DType, want)
		}
		size := int64(len(e.Data))
		header.Arrays[i] = ArrayMeta{
			Name:   e.Name,
			DType:  e.DType.String(),
			Shape:  append([]int(nil), e.Shape...),
			Offset: offset,
			Size:   size,
		}
		hash.Write(e.Data)
		offset = align(offset+size, HeaderAlignment)
	}
	header.Checksum = hex.EncodeToString(hash.Sum(nil))

	headerJSON, err := json.Marshal(&header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	w := bufio.NewWriter(f)

	writeErr := func() error {
		if _, err := w.WriteString(MagicBytes); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(FormatVersion)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, FlagHasChecksum); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
			return err
		}
		if _, err := w.Write(headerJSON); err != nil {
			return err
		}

		// Pad to the aligned start of the data section.
		pos := int64(fixedPrefixSize + len(headerJSON))
		if err := writePadding(w, align(pos, HeaderAlignment)-pos); err != nil {
			return err
		}

		var written int64
		for _, e := range entries {
			if _, err := w.Write(e.Data); err != nil {
				return err
			}
			written += int64(len(e.Data))
			if err := writePadding(w, align(written, HeaderAlignment)-written); err != nil {
				return err
			}
			written = align(written, HeaderAlignment)
		}
		return w.Flush()
	}()

	if writeErr != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write container: %w", writeErr)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

func align(n, to int64) int64 {
	return (n + to - 1) / to * to
}

func elemCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

var zeroPad [HeaderAlignment]byte

func writePadding(w *bufio.Writer, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := w.Write(zeroPad[:n])
	return err
}
