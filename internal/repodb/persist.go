package repodb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/a2-ai/rv/internal/rversion"
)

// schemaMagic tags the binary format so a reader can reject a snapshot
// written by an incompatible version before decoding further (spec.md
// §4.1: "verifies a schema tag and rejects mismatched versions").
const schemaMagic uint32 = 0x52564442 // "RVDB"

// SchemaVersion is bumped whenever the on-disk record layout changes.
const SchemaVersion uint32 = 1

// ErrSchemaMismatch is returned by Decode when the snapshot's magic or
// schema version doesn't match what this build expects.
var ErrSchemaMismatch = fmt.Errorf("repodb: schema mismatch")

// Encode persists records to the binary snapshot format addressed under
// the cache by RepositoryDBPath (spec.md §4.1: "Persistence: binary-
// encoded"). The format is a hand-written length-prefixed framing rather
// than encoding/gob (DESIGN.md Open Question #4): a schema-tag
// header, then each record as a sequence of length-prefixed fields, so a
// stale schema is rejected outright instead of gob silently decoding a
// partially-compatible struct.
func Encode(records []PackageRecord) []byte {
	var buf bytes.Buffer

	writeU32(&buf, schemaMagic)
	writeU32(&buf, SchemaVersion)
	writeU32(&buf, uint32(len(records)))

	for _, r := range records {
		writeRecord(&buf, r)
	}

	return buf.Bytes()
}

// Decode parses the format written by Encode, verifying the schema tag
// first and returning ErrSchemaMismatch if it doesn't match.
func Decode(data []byte) ([]PackageRecord, error) {
	r := bytes.NewReader(data)

	magic, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("repodb: reading schema magic: %w", err)
	}
	version, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("repodb: reading schema version: %w", err)
	}
	if magic != schemaMagic || version != SchemaVersion {
		return nil, fmt.Errorf("%w: got magic=0x%x version=%d, want magic=0x%x version=%d",
			ErrSchemaMismatch, magic, version, schemaMagic, SchemaVersion)
	}

	count, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("repodb: reading record count: %w", err)
	}

	records := make([]PackageRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		rec, err := readRecord(r)
		if err != nil {
			return nil, fmt.Errorf("repodb: reading record %d: %w", i, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func writeRecord(buf *bytes.Buffer, r PackageRecord) {
	writeString(buf, r.Name)
	writeString(buf, r.Version.String())
	writeDeps(buf, r.Depends)
	writeDeps(buf, r.Imports)
	writeDeps(buf, r.LinkingTo)
	writeDeps(buf, r.Suggests)
	writeDeps(buf, r.Enhances)
	writeBool(buf, r.NeedsCompilation)
	writeString(buf, r.License)
	writeString(buf, r.Path)
	writeStringSlice(buf, r.Archs)
}

func readRecord(r io.Reader) (PackageRecord, error) {
	var rec PackageRecord
	var err error

	if rec.Name, err = readString(r); err != nil {
		return rec, err
	}
	versionStr, err := readString(r)
	if err != nil {
		return rec, err
	}
	if rec.Version, err = rversion.Parse(versionStr); err != nil {
		return rec, fmt.Errorf("decoding version %q: %w", versionStr, err)
	}
	if rec.Depends, err = readDeps(r); err != nil {
		return rec, err
	}
	if rec.Imports, err = readDeps(r); err != nil {
		return rec, err
	}
	if rec.LinkingTo, err = readDeps(r); err != nil {
		return rec, err
	}
	if rec.Suggests, err = readDeps(r); err != nil {
		return rec, err
	}
	if rec.Enhances, err = readDeps(r); err != nil {
		return rec, err
	}
	if rec.NeedsCompilation, err = readBool(r); err != nil {
		return rec, err
	}
	if rec.License, err = readString(r); err != nil {
		return rec, err
	}
	if rec.Path, err = readString(r); err != nil {
		return rec, err
	}
	if rec.Archs, err = readStringSlice(r); err != nil {
		return rec, err
	}

	return rec, nil
}

func writeDeps(buf *bytes.Buffer, deps []Dep) {
	writeU32(buf, uint32(len(deps)))
	for _, d := range deps {
		writeString(buf, d.Name)
		writeString(buf, string(d.Op))
		if d.Op == OpNone {
			writeString(buf, "")
		} else {
			writeString(buf, d.Version.String())
		}
	}
}

func readDeps(r io.Reader) ([]Dep, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	deps := make([]Dep, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		op, err := readString(r)
		if err != nil {
			return nil, err
		}
		versionStr, err := readString(r)
		if err != nil {
			return nil, err
		}
		d := Dep{Name: name, Op: DepOp(op)}
		if d.Op != OpNone {
			if d.Version, err = rversion.Parse(versionStr); err != nil {
				return nil, fmt.Errorf("decoding dep version %q: %w", versionStr, err)
			}
		}
		deps = append(deps, d)
	}
	return deps, nil
}

func writeStringSlice(buf *bytes.Buffer, ss []string) {
	writeU32(buf, uint32(len(ss)))
	for _, s := range ss {
		writeString(buf, s)
	}
}

func readStringSlice(r io.Reader) ([]string, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func readU32(r io.Reader) (uint32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(tmp[:]), nil
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", err
	}
	return string(data), nil
}
