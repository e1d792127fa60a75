// Package pgwire decodes on-disk images of the versioned_int PostgreSQL
// extension type.
//
// The extension stores a varlena of the form
//
//	int32 vl_len_                -- varlena header, byte length << 2
//	int32 count                  -- number of entries
//	{int32 value; int64 time}[]  -- entries, 16 bytes each with padding
//
// on little-endian 64-bit builds, which is the layout this package reads.
// Entry times are timestamptz microsecond offsets from the PostgreSQL
// epoch.
package pgwire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/Lulexs/versioned-pg/internal/domain/entity"
	"github.com/Lulexs/versioned-pg/internal/pkg/hexutil"
	"github.com/Lulexs/versioned-pg/internal/pkg/pgtime"
)

const (
	headerSize = 8  // varlena header + entry count
	entrySize  = 16 // int32 value, 4 bytes padding, int64 timestamptz
)

// DecodeVersionedInt decodes the raw varlena image of a versioned_int
// value. The image must be structurally exact: header length matching the
// data, at least one entry, and every entry timestamp inside the valid
// timestamptz range.
func DecodeVersionedInt(data []byte) (*entity.VersionedValue, error) {
	if len(data) < headerSize+entrySize {
		return nil, fmt.Errorf("%w: image of %d bytes is shorter than one-entry minimum %d",
			hexutil.ErrInvalidFormat, len(data), headerSize+entrySize)
	}

	// The 4-byte varlena header stores the total byte length shifted left
	// by two; the low bits flag compressed or toasted values, which never
	// appear in a plain dump of the struct.
	header := binary.LittleEndian.Uint32(data[0:4])
	if header&0x3 != 0 {
		return nil, fmt.Errorf("%w: compressed or external varlena header 0x%08x", hexutil.ErrInvalidFormat, header)
	}
	declared := int(header >> 2)
	if declared != len(data) {
		return nil, fmt.Errorf("%w: header declares %d bytes, image has %d", hexutil.ErrInvalidFormat, declared, len(data))
	}

	count := int32(binary.LittleEndian.Uint32(data[4:8]))
	if count < 1 {
		return nil, fmt.Errorf("%w: entry count %d", hexutil.ErrInvalidFormat, count)
	}
	if want := headerSize + int(count)*entrySize; want != len(data) {
		return nil, fmt.Errorf("%w: %d entries need %d bytes, image has %d", hexutil.ErrInvalidFormat, count, want, len(data))
	}

	versions := make([]entity.Version, 0, count)
	for i := 0; i < int(count); i++ {
		off := headerSize + i*entrySize
		value := int32(binary.LittleEndian.Uint32(data[off : off+4]))
		micros := int64(binary.LittleEndian.Uint64(data[off+8 : off+16]))

		at, err := pgtime.ToTime(micros)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		versions = append(versions, entity.Version{Value: value, ValidAt: at})
	}

	return entity.NewVersionedValue(versions)
}

// DecodeVersionedIntHex decodes a hex-encoded versioned_int image, as
// produced by encode(col::bytea, 'hex') or a \x-prefixed bytea dump field.
func DecodeVersionedIntHex(token string) (*entity.VersionedValue, error) {
	if len(token) >= 2 && token[0] == '\\' && token[1] == 'x' {
		token = token[2:]
	}
	data, err := hex.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hexutil.ErrInvalidFormat, err)
	}
	return DecodeVersionedInt(data)
}

// EncodeVersionedInt renders a VersionedValue as the varlena image
// DecodeVersionedInt reads. Used by tests and fixtures to produce
// reference images.
func EncodeVersionedInt(v *entity.VersionedValue) []byte {
	versions := v.Versions()
	data := make([]byte, headerSize+len(versions)*entrySize)
	binary.LittleEndian.PutUint32(data[0:4], uint32(len(data))<<2)
	binary.LittleEndian.PutUint32(data[4:8], uint32(len(versions)))
	for i, ver := range versions {
		off := headerSize + i*entrySize
		binary.LittleEndian.PutUint32(data[off:off+4], uint32(ver.Value))
		binary.LittleEndian.PutUint64(data[off+8:off+16], uint64(pgtime.FromTime(ver.ValidAt)))
	}
	return data
}
