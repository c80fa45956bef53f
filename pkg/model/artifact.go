package model

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"k8s.io/klog/v2"
)

// Artifact container layout, little-endian: 4-byte magic, u32 format
// version, u32 KV count, length-prefixed key/value strings, u64 payload
// length, payload bytes.
const (
	artifactMagic   = "GPOT"
	artifactVersion = 1

	maxKVEntries  = 1 << 16
	maxStringSize = 1 << 20
)

// Artifact is a potential shipped as a single file: a string KV section
// describing the model plus an opaque backend payload (weights, parameters).
type Artifact struct {
	KV      map[string]string
	Payload []byte

	meta *Metadata
}

func (a *Artifact) Metadata() *Metadata {
	return a.meta
}

// ReadArtifact loads and validates an artifact, including its metadata, so
// a malformed file fails at load time rather than mid-run.
func ReadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stating artifact: %w", err)
	}

	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: reading magic: %v", ErrArtifactFormat, err)
	}
	if string(magic[:]) != artifactMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrArtifactFormat, magic)
	}

	version, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading version: %v", ErrArtifactFormat, err)
	}
	if version != artifactVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrArtifactFormat, version)
	}

	count, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading KV count: %v", ErrArtifactFormat, err)
	}
	if count > maxKVEntries {
		return nil, fmt.Errorf("%w: %d KV entries", ErrArtifactFormat, count)
	}

	kv := make(map[string]string, count)
	for i := uint32(0); i < count; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading key %d: %v", ErrArtifactFormat, i, err)
		}
		value, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading value for %q: %v", ErrArtifactFormat, key, err)
		}
		kv[key] = value
	}

	payloadLen, err := readU64(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading payload length: %v", ErrArtifactFormat, err)
	}
	if payloadLen > uint64(st.Size()) {
		return nil, fmt.Errorf("%w: payload length %d exceeds file size %d", ErrArtifactFormat, payloadLen, st.Size())
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", ErrArtifactFormat, err)
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after payload", ErrArtifactFormat)
	}

	meta, err := ParseMetadata(kv)
	if err != nil {
		return nil, err
	}

	return &Artifact{KV: kv, Payload: payload, meta: meta}, nil
}

// WriteArtifact encodes KV and payload to path via a temp file and rename.
// The KV section must parse as valid metadata; keys are written sorted so
// identical content produces an identical file (and digest).
func WriteArtifact(path string, kv map[string]string, payload []byte) error {
	if _, err := ParseMetadata(kv); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "artifact")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	shouldDeleteTempFile := true
	defer func() {
		if shouldDeleteTempFile {
			if err := os.Remove(tempFile.Name()); err != nil {
				klog.Warningf("removing temp file %q: %v", tempFile.Name(), err)
			}
		}
	}()

	shouldCloseTempFile := true
	defer func() {
		if shouldCloseTempFile {
			if err := tempFile.Close(); err != nil {
				klog.Warningf("closing temp file %q: %v", tempFile.Name(), err)
			}
		}
	}()

	w := bufio.NewWriter(tempFile)

	if _, err := w.WriteString(artifactMagic); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if err := writeU32(w, artifactVersion); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	if err := writeU32(w, uint32(len(kv))); err != nil {
		return fmt.Errorf("writing KV count: %w", err)
	}

	keys := make([]string, 0, len(kv))
	for key := range kv {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := writeString(w, key); err != nil {
			return fmt.Errorf("writing key %q: %w", key, err)
		}
		if err := writeString(w, kv[key]); err != nil {
			return fmt.Errorf("writing value for %q: %w", key, err)
		}
	}

	if err := writeU64(w, uint64(len(payload))); err != nil {
		return fmt.Errorf("writing payload length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing artifact: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	shouldCloseTempFile = false

	if err := os.Rename(tempFile.Name(), path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	shouldDeleteTempFile = false

	return nil
}

// KV renders the metadata back into the artifact's KV form, the inverse of
// ParseMetadata. Extra keys never clobber the typed ones.
func (m *Metadata) KV() map[string]string {
	kv := make(map[string]string, len(m.Extra)+7)
	for key, value := range m.Extra {
		kv[key] = value
	}
	kv[KeyCutoff] = strconv.FormatFloat(m.Cutoff, 'g', -1, 64)
	kv[KeyNumSpecies] = strconv.Itoa(m.NumSpecies)
	kv[KeyTypeNames] = strings.Join(m.TypeNames, " ")
	if m.Name != "" {
		kv[KeyName] = m.Name
	}
	if m.Version != "" {
		kv[KeyVersion] = m.Version
	}
	if m.Backend != "" {
		kv[KeyBackend] = m.Backend
	}
	if m.AllowTF32 {
		kv[KeyAllowTF32] = "1"
	}
	return kv
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	if n > maxStringSize {
		return "", fmt.Errorf("string length %d too large", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeU32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func writeU64(w io.Writer, v uint64) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}
