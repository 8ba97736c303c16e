// Package dir decodes the fixed-size directory entries packed into a
// directory's data blocks.
package dir

import (
	"bytes"
	"encoding/binary"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/xv6-fsck/common"
	"github.com/mit-pdos/xv6-fsck/disk"
)

// EntriesPerBlock is the number of directory entries in one block.
const EntriesPerBlock = disk.BlockSize / common.DIRENTSZ

// Dirent is a decoded directory entry. Inum 0 marks an unused slot.
type Dirent struct {
	Inum common.Inum
	Name string
}

// Decode unpacks the entry at the start of buf.
func Decode(buf []byte) Dirent {
	dec := marshal.NewDec(buf[:common.DIRENTSZ])
	inum := binary.LittleEndian.Uint16(dec.GetBytes(2))
	name := dec.GetBytes(common.DIRSIZ)
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Dirent{Inum: common.Inum(inum), Name: string(name)}
}

// Encode packs de into a DIRENTSZ-byte record. Names longer than
// DIRSIZ bytes are truncated.
func (de Dirent) Encode() []byte {
	enc := marshal.NewEnc(common.DIRENTSZ)
	inum := make([]byte, 2)
	binary.LittleEndian.PutUint16(inum, uint16(de.Inum))
	enc.PutBytes(inum)
	name := make([]byte, common.DIRSIZ)
	copy(name, de.Name)
	enc.PutBytes(name)
	return enc.Finish()
}

// Entries decodes all EntriesPerBlock entries of a directory block,
// unused slots included.
func Entries(blk disk.Block) []Dirent {
	des := make([]Dirent, 0, EntriesPerBlock)
	for off := uint64(0); off < disk.BlockSize; off += common.DIRENTSZ {
		des = append(des, Decode(blk[off:off+common.DIRENTSZ]))
	}
	return des
}

// PutEntry overwrites slot n of a directory block in place.
func PutEntry(blk disk.Block, n uint64, de Dirent) {
	copy(blk[n*common.DIRENTSZ:], de.Encode())
}
