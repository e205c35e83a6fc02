// Package recorder implements the FDPREC delta/keyframe recording
// format and its symmetric player (spec §4.11, §6). It depends only on
// internal/ecs's exported seam (recorder_support.go, table.go's
// RawChunkTable/ManagedChunkTable, event.go's capture/inject helpers)
// and on internal/ecs/codec for managed-value serialization: a
// genuinely one-directional dependent of ecs, not a mutual
// collaborator, which is why it stays a separate package while
// TypeRegistry/World/Query/CommandBuffer/EventBus do not (see
// DESIGN.md).
package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/lz4"

	"github.com/pjanec/FastDataPlane-sub004/internal/ecs"
)

// FileMagic is FDPREC's 6-byte ASCII file header magic (spec §6).
const FileMagic = "FDPREC"

// FormatVersion is bumped on any storage or frame-stream layout change;
// a reader refuses a recording whose format_version does not match.
const FormatVersion uint32 = 1

// Kind distinguishes a Delta frame from a Keyframe.
type Kind uint8

const (
	KindDelta    Kind = 0
	KindKeyframe Kind = 1
)

func (k Kind) String() string {
	if k == KindKeyframe {
		return "keyframe"
	}
	return "delta"
}

// DestroyedEntry is one (index, generation) pair destroyed during the
// frame being recorded.
type DestroyedEntry struct {
	Index      int32
	Generation uint16
}

// NativeStreamBlob is one unmanaged event stream's captured bytes.
type NativeStreamBlob struct {
	TypeID      int32
	ElementSize int32
	Raw         []byte // count = len(Raw)/ElementSize elements, already flat
}

// ManagedStreamBlob is one managed event stream's captured, codec-
// encoded bytes: Raw is Count codec-framed (null/present discriminator
// + body) entries concatenated.
type ManagedStreamBlob struct {
	TypeID   int32
	TypeName string
	Count    int32
	Raw      []byte
}

// SingletonBlob is one singleton's captured bytes: either a raw memcpy
// of a POD value, or a single codec-framed entry for a managed value.
type SingletonBlob struct {
	TypeID int32
	Raw    []byte
}

// ComponentBlob is one component (or, for TypeID == HeaderTypeID, the
// entity index header) chunk's captured bytes for one chunk_blob entry.
type ComponentBlob struct {
	TypeID int32
	Raw    []byte
}

// HeaderTypeID is the special type_id (-1) identifying EntityIndex
// header chunks within a chunk_blob's component list (spec §4.11).
const HeaderTypeID int32 = -1

// ChunkBlob groups every dirty table's (or the header's) raw bytes for
// one chunk index.
type ChunkBlob struct {
	ChunkID int32
	Comps   []ComponentBlob
}

// Frame is one logical recorder frame, decoded from its uncompressed
// payload (spec §4.11's exact wire layout).
type Frame struct {
	Tick      uint64
	Kind      Kind
	Destroyed []DestroyedEntry
	Native    []NativeStreamBlob
	Managed   []ManagedStreamBlob
	Singletons []SingletonBlob
	Chunks    []ChunkBlob
}

// WriteFileHeader writes FDPREC's 6-byte magic, format_version and a
// created_timestamp (unix nanoseconds) to w.
func WriteFileHeader(w io.Writer, created time.Time) error {
	if _, err := w.Write([]byte(FileMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, FormatVersion); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, created.UnixNano())
}

// ReadFileHeader reads and validates FDPREC's file header, refusing a
// recording whose format_version does not match FormatVersion (spec §6:
// "recordings are not backward compatible").
func ReadFileHeader(r io.Reader) (created time.Time, err error) {
	magic := make([]byte, len(FileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return time.Time{}, err
	}
	if string(magic) != FileMagic {
		return time.Time{}, fmt.Errorf("recorder: bad file magic %q", magic)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return time.Time{}, err
	}
	if version != FormatVersion {
		return time.Time{}, ecs.FormatMismatchErr(version, FormatVersion)
	}
	var nanos int64
	if err := binary.Read(r, binary.LittleEndian, &nanos); err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos), nil
}

// encodeFrame serializes f's uncompressed payload per spec §4.11's
// exact field order.
func encodeFrame(f *Frame) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, f.Tick)
	_ = buf.WriteByte(byte(f.Kind))

	_ = binary.Write(&buf, binary.LittleEndian, int32(len(f.Destroyed)))
	for _, d := range f.Destroyed {
		_ = binary.Write(&buf, binary.LittleEndian, d.Index)
		_ = binary.Write(&buf, binary.LittleEndian, d.Generation)
	}

	_ = binary.Write(&buf, binary.LittleEndian, int32(len(f.Native)))
	for _, n := range f.Native {
		_ = binary.Write(&buf, binary.LittleEndian, n.TypeID)
		_ = binary.Write(&buf, binary.LittleEndian, n.ElementSize)
		count := int32(0)
		if n.ElementSize > 0 {
			count = int32(len(n.Raw)) / n.ElementSize
		}
		_ = binary.Write(&buf, binary.LittleEndian, count)
		buf.Write(n.Raw)
	}

	_ = binary.Write(&buf, binary.LittleEndian, int32(len(f.Managed)))
	for _, m := range f.Managed {
		_ = binary.Write(&buf, binary.LittleEndian, m.TypeID)
		_ = binary.Write(&buf, binary.LittleEndian, int32(0)) // reserved
		nameBytes := []byte(m.TypeName)
		body := int32(4+len(nameBytes)) + 4 + int32(len(m.Raw))
		_ = binary.Write(&buf, binary.LittleEndian, body)
		_ = binary.Write(&buf, binary.LittleEndian, int32(len(nameBytes)))
		buf.Write(nameBytes)
		_ = binary.Write(&buf, binary.LittleEndian, m.Count)
		buf.Write(m.Raw)
	}

	_ = binary.Write(&buf, binary.LittleEndian, int32(len(f.Singletons)))
	for _, s := range f.Singletons {
		_ = binary.Write(&buf, binary.LittleEndian, s.TypeID)
		_ = binary.Write(&buf, binary.LittleEndian, int32(len(s.Raw)))
		buf.Write(s.Raw)
	}

	_ = binary.Write(&buf, binary.LittleEndian, int32(len(f.Chunks)))
	for _, c := range f.Chunks {
		_ = binary.Write(&buf, binary.LittleEndian, c.ChunkID)
		_ = binary.Write(&buf, binary.LittleEndian, int32(len(c.Comps)))
		for _, comp := range c.Comps {
			_ = binary.Write(&buf, binary.LittleEndian, comp.TypeID)
			_ = binary.Write(&buf, binary.LittleEndian, int32(len(comp.Raw)))
			buf.Write(comp.Raw)
		}
	}
	return buf.Bytes()
}

// decodeFrame parses payload back into a Frame; CorruptFrame-shaped
// errors are surfaced as plain errors, wrapped by the caller.
func decodeFrame(payload []byte) (*Frame, error) {
	r := bytes.NewReader(payload)
	f := &Frame{}
	if err := binary.Read(r, binary.LittleEndian, &f.Tick); err != nil {
		return nil, err
	}
	kb, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	f.Kind = Kind(kb)

	var destroyedCount int32
	if err := binary.Read(r, binary.LittleEndian, &destroyedCount); err != nil {
		return nil, err
	}
	for i := int32(0); i < destroyedCount; i++ {
		var d DestroyedEntry
		if err := binary.Read(r, binary.LittleEndian, &d.Index); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &d.Generation); err != nil {
			return nil, err
		}
		f.Destroyed = append(f.Destroyed, d)
	}

	var nativeCount int32
	if err := binary.Read(r, binary.LittleEndian, &nativeCount); err != nil {
		return nil, err
	}
	for i := int32(0); i < nativeCount; i++ {
		var n NativeStreamBlob
		if err := binary.Read(r, binary.LittleEndian, &n.TypeID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &n.ElementSize); err != nil {
			return nil, err
		}
		var count int32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, err
		}
		n.Raw = make([]byte, int64(count)*int64(n.ElementSize))
		if _, err := io.ReadFull(r, n.Raw); err != nil {
			return nil, err
		}
		f.Native = append(f.Native, n)
	}

	var managedCount int32
	if err := binary.Read(r, binary.LittleEndian, &managedCount); err != nil {
		return nil, err
	}
	for i := int32(0); i < managedCount; i++ {
		var m ManagedStreamBlob
		if err := binary.Read(r, binary.LittleEndian, &m.TypeID); err != nil {
			return nil, err
		}
		var reserved int32
		if err := binary.Read(r, binary.LittleEndian, &reserved); err != nil {
			return nil, err
		}
		var blockSize int32
		if err := binary.Read(r, binary.LittleEndian, &blockSize); err != nil {
			return nil, err
		}
		var nameLen int32
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, err
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return nil, err
		}
		m.TypeName = string(nameBytes)
		if err := binary.Read(r, binary.LittleEndian, &m.Count); err != nil {
			return nil, err
		}
		rawLen := blockSize - (4 + nameLen) - 4
		if rawLen < 0 {
			return nil, ecs.CorruptFrameErr("managed stream block_size underflow")
		}
		m.Raw = make([]byte, rawLen)
		if _, err := io.ReadFull(r, m.Raw); err != nil {
			return nil, err
		}
		f.Managed = append(f.Managed, m)
	}

	var singletonCount int32
	if err := binary.Read(r, binary.LittleEndian, &singletonCount); err != nil {
		return nil, err
	}
	for i := int32(0); i < singletonCount; i++ {
		var s SingletonBlob
		if err := binary.Read(r, binary.LittleEndian, &s.TypeID); err != nil {
			return nil, err
		}
		var length int32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, err
		}
		s.Raw = make([]byte, length)
		if _, err := io.ReadFull(r, s.Raw); err != nil {
			return nil, err
		}
		f.Singletons = append(f.Singletons, s)
	}

	var chunkCount int32
	if err := binary.Read(r, binary.LittleEndian, &chunkCount); err != nil {
		return nil, err
	}
	for i := int32(0); i < chunkCount; i++ {
		var cb ChunkBlob
		if err := binary.Read(r, binary.LittleEndian, &cb.ChunkID); err != nil {
			return nil, err
		}
		var compsCount int32
		if err := binary.Read(r, binary.LittleEndian, &compsCount); err != nil {
			return nil, err
		}
		for j := int32(0); j < compsCount; j++ {
			var comp ComponentBlob
			if err := binary.Read(r, binary.LittleEndian, &comp.TypeID); err != nil {
				return nil, err
			}
			var length int32
			if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
				return nil, err
			}
			comp.Raw = make([]byte, length)
			if _, err := io.ReadFull(r, comp.Raw); err != nil {
				return nil, err
			}
			cb.Comps = append(cb.Comps, comp)
		}
		f.Chunks = append(f.Chunks, cb)
	}
	return f, nil
}

// lz4HashTableSize is the hash-table length klauspost/compress/lz4's
// block-level CompressBlock wants for its default compression level
// (spec §4.11/§6 mandate LZ4 *block* compression, not the framed
// stream format lz4.NewWriter/NewReader produce).
const lz4HashTableSize = 1 << 16

// lz4HashTables pools CompressBlock's scratch hash table (one entry is
// a 512KB [65536]int) across captures, in the style of the teacher's
// memory_manager.go pooled allocator, instead of allocating one fresh
// per frame.
var lz4HashTables = sync.Pool{
	New: func() any { return make([]int, lz4HashTableSize) },
}

// compressPayload LZ4-block-compresses payload when compress is true,
// using klauspost/compress/lz4's CompressBlock/CompressBlockBound (both
// stable, documented exports of that package). compress is false when
// Config.RecorderCompression is disabled, or CompressBlock reports the
// block didn't shrink (its documented 0-length "incompressible" return);
// either way payload is stored verbatim, and decompressPayload tells the
// two cases apart from the stored compressed_len alone.
func compressPayload(payload []byte, compress bool) ([]byte, error) {
	if !compress || len(payload) == 0 {
		return payload, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(payload)))
	hashTable := lz4HashTables.Get().([]int)
	defer lz4HashTables.Put(hashTable)
	n, err := lz4.CompressBlock(payload, dst, hashTable)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return payload, nil
	}
	return dst[:n], nil
}

// decompressPayload reverses compressPayload. A compressed blob whose
// length equals uncompressedLen is stored verbatim (compression was
// disabled or the block didn't shrink) and is returned as-is;
// CompressBlock never returns a successful compressed length equal to
// or greater than its input, so this distinguishes the two cases
// without a wire-format flag bit. Otherwise the bytes are decompressed
// with UncompressBlock, requiring exactly uncompressedLen bytes to come
// out (spec §4.11: "decompression at exactly uncompressed_len is
// required").
func decompressPayload(compressed []byte, uncompressedLen int) ([]byte, error) {
	if len(compressed) == uncompressedLen {
		out := make([]byte, uncompressedLen)
		copy(out, compressed)
		return out, nil
	}
	dst := make([]byte, uncompressedLen)
	n, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return nil, ecs.CorruptFrameErr(fmt.Sprintf("lz4 decompress: %v", err))
	}
	if n != uncompressedLen {
		return nil, ecs.CorruptFrameErr("lz4 decompress: length mismatch")
	}
	return dst, nil
}

// WriteFrame encodes, compresses and appends f to w in the on-disk
// layout: [compressed_len i32][uncompressed_len i32][tick u64][kind u8]
// [LZ4 bytes]. tick and kind duplicate the payload's own leading fields
// so a reader can index frames without decompressing them (spec §6).
// compress selects LZ4 block compression (Config.RecorderCompression);
// passing false stores the payload verbatim for debugging.
func WriteFrame(w io.Writer, f *Frame, compress bool) error {
	payload := encodeFrame(f)
	compressed, err := compressPayload(payload, compress)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(compressed))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(payload))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, f.Tick); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byte(f.Kind)); err != nil {
		return err
	}
	_, err = w.Write(compressed)
	return err
}

// ReadFrame reads one frame from r, decompresses and decodes it,
// verifying the duplicated tick/kind header against the decoded
// payload.
func ReadFrame(r io.Reader) (*Frame, error) {
	var compressedLen, uncompressedLen int32
	if err := binary.Read(r, binary.LittleEndian, &compressedLen); err != nil {
		return nil, err // io.EOF here means "no more frames", propagated to caller
	}
	if err := binary.Read(r, binary.LittleEndian, &uncompressedLen); err != nil {
		return nil, ecs.CorruptFrameErr(fmt.Sprintf("reading uncompressed_len: %v", err))
	}
	var tick uint64
	if err := binary.Read(r, binary.LittleEndian, &tick); err != nil {
		return nil, ecs.CorruptFrameErr(fmt.Sprintf("reading tick: %v", err))
	}
	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return nil, ecs.CorruptFrameErr(fmt.Sprintf("reading kind: %v", err))
	}
	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, ecs.CorruptFrameErr(fmt.Sprintf("reading compressed payload: %v", err))
	}
	payload, err := decompressPayload(compressed, int(uncompressedLen))
	if err != nil {
		return nil, err
	}
	f, err := decodeFrame(payload)
	if err != nil {
		return nil, ecs.CorruptFrameErr(fmt.Sprintf("decoding payload: %v", err))
	}
	if f.Tick != tick || byte(f.Kind) != kindByte[0] {
		return nil, ecs.CorruptFrameErr("header/payload tick or kind mismatch")
	}
	return f, nil
}
