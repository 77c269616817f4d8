package slide

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// quickHashChunk is how much of each end of the file is hashed.
const quickHashChunk = 64 << 10

// QuickHash returns a content fingerprint of the file at path: SHA-256
// over the file size, the first 64 KiB and the last 64 KiB. It is cheap on
// multi-gigabyte slides and stable across renames.
func QuickHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("quick hash: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("quick hash: %w", err)
	}
	size := st.Size()

	h := sha256.New()
	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(size))
	h.Write(sizeBuf[:])

	if _, err := io.CopyN(h, f, min(size, quickHashChunk)); err != nil {
		return "", fmt.Errorf("quick hash: reading head: %w", err)
	}
	if size > quickHashChunk {
		tail := max(size-quickHashChunk, quickHashChunk)
		if _, err := io.Copy(h, io.NewSectionReader(f, tail, size-tail)); err != nil {
			return "", fmt.Errorf("quick hash: reading tail: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
