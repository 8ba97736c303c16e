// Package inode decodes on-disk inode records and indirect address
// blocks.
package inode

import (
	"encoding/binary"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/xv6-fsck/common"
	"github.com/mit-pdos/xv6-fsck/disk"
	"github.com/mit-pdos/xv6-fsck/super"
)

// Itype is an inode's on-disk type tag.
type Itype uint16

const (
	TypeFree Itype = 0
	TypeDir  Itype = 1
	TypeFile Itype = 2
	TypeDev  Itype = 3
)

// Allocated reports whether the type tag marks the inode in use. It
// says nothing about the tag being valid.
func (t Itype) Allocated() bool {
	return t != TypeFree
}

// Dinode is a decoded inode record. Addrs holds NDIRECT direct block
// addresses followed by the indirect block address.
type Dinode struct {
	Type  Itype
	Major uint16
	Minor uint16
	Nlink uint16
	Size  uint64
	Addrs [common.NDIRECT + 1]common.Bnum
}

// Indirect returns the indirect block address (slot NDIRECT).
func (ino *Dinode) Indirect() common.Bnum {
	return ino.Addrs[common.NDIRECT]
}

// Direct returns the direct address slots.
func (ino *Dinode) Direct() []common.Bnum {
	return ino.Addrs[:common.NDIRECT]
}

// Decode unpacks the inode record at the start of buf.
//
// The 16-bit header fields are read with encoding/binary; marshal has
// no 16-bit operations.
func Decode(buf []byte) Dinode {
	var ino Dinode
	dec := marshal.NewDec(buf[:common.INODESZ])
	hdr := dec.GetBytes(8)
	ino.Type = Itype(binary.LittleEndian.Uint16(hdr[0:2]))
	ino.Major = binary.LittleEndian.Uint16(hdr[2:4])
	ino.Minor = binary.LittleEndian.Uint16(hdr[4:6])
	ino.Nlink = binary.LittleEndian.Uint16(hdr[6:8])
	ino.Size = uint64(dec.GetInt32())
	for i := range ino.Addrs {
		ino.Addrs[i] = common.Bnum(dec.GetInt32())
	}
	return ino
}

// Encode packs ino into an INODESZ-byte record.
func (ino *Dinode) Encode() []byte {
	enc := marshal.NewEnc(common.INODESZ)
	hdr := make([]byte, 8)
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(ino.Type))
	binary.LittleEndian.PutUint16(hdr[2:4], ino.Major)
	binary.LittleEndian.PutUint16(hdr[4:6], ino.Minor)
	binary.LittleEndian.PutUint16(hdr[6:8], ino.Nlink)
	enc.PutBytes(hdr)
	enc.PutInt32(uint32(ino.Size))
	for _, a := range ino.Addrs {
		enc.PutInt32(uint32(a))
	}
	return enc.Finish()
}

// Read loads inode inum from the table.
func Read(d disk.Disk, fs *super.FsSuper, inum common.Inum) (Dinode, error) {
	blkno, off := fs.Inum2Addr(inum)
	blk, err := d.Read(blkno)
	if err != nil {
		return Dinode{}, err
	}
	return Decode(blk[off : off+common.INODESZ]), nil
}

// ReadTable loads the whole inode table, indexed by inode number.
func ReadTable(d disk.Disk, fs *super.FsSuper) ([]Dinode, error) {
	inodes := make([]Dinode, 0, fs.NInodes)
	for inum := common.Inum(0); uint64(inum) < fs.NInodes; inum++ {
		ino, err := Read(d, fs, inum)
		if err != nil {
			return nil, err
		}
		inodes = append(inodes, ino)
	}
	return inodes, nil
}

// ReadIndirect decodes the address array stored in block bn.
func ReadIndirect(d disk.Disk, bn common.Bnum) ([]common.Bnum, error) {
	blk, err := d.Read(bn)
	if err != nil {
		return nil, err
	}
	dec := marshal.NewDec(blk)
	addrs := make([]common.Bnum, 0, common.NINDIRECT)
	for i := uint64(0); i < common.NINDIRECT; i++ {
		addrs = append(addrs, common.Bnum(dec.GetInt32()))
	}
	return addrs, nil
}

// EncodeIndirect packs addrs into an indirect block; unused entries
// stay zero.
func EncodeIndirect(addrs []common.Bnum) disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	for _, a := range addrs {
		enc.PutInt32(uint32(a))
	}
	return enc.Finish()
}
