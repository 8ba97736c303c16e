// Package super reads the superblock and resolves the on-disk layout:
// where the inode table, free-block bitmap, and data region begin.
package super

import (
	"errors"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/xv6-fsck/common"
	"github.com/mit-pdos/xv6-fsck/disk"
	"github.com/mit-pdos/xv6-fsck/util"
)

// ErrCorrupt reports a superblock whose declared counts are
// implausible for the image being checked.
var ErrCorrupt = errors.New("superblock is corrupt")

// FsSuper is the decoded superblock plus the layout derived from it.
//
// The derived quantities use the same truncating integer division as
// the tool that built the image; the rounding defines where the bitmap
// and data regions begin and must not be "fixed" to a true ceiling.
type FsSuper struct {
	Size    uint64 // total blocks in the image
	NBlocks uint64 // data blocks
	NInodes uint64 // inode records in the table
}

// MkFsSuper decodes the superblock of d and validates its counts
// before they are used to size anything.
func MkFsSuper(d disk.Disk) (*FsSuper, error) {
	blk, err := d.Read(common.SUPERBLK)
	if err != nil {
		return nil, err
	}
	dec := marshal.NewDec(blk)
	fs := &FsSuper{
		Size:    uint64(dec.GetInt32()),
		NBlocks: uint64(dec.GetInt32()),
		NInodes: uint64(dec.GetInt32()),
	}

	imgSz, err := d.Size()
	if err != nil {
		return nil, err
	}
	if fs.Size == 0 || fs.NInodes == 0 {
		return nil, ErrCorrupt
	}
	if fs.Size > imgSz {
		return nil, ErrCorrupt
	}
	if fs.NBlocks >= fs.Size {
		return nil, ErrCorrupt
	}
	if util.SumOverflows(fs.NumInodeBlocks(), fs.NumBitmapBlocks()) {
		return nil, ErrCorrupt
	}
	if fs.DataStart() >= fs.Size {
		return nil, ErrCorrupt
	}
	util.DPrintf(1, "MkFsSuper: size %d nblocks %d ninodes %d dataStart %d\n",
		fs.Size, fs.NBlocks, fs.NInodes, fs.DataStart())
	return fs, nil
}

// Encode renders fs as a superblock record padded to a full block.
func (fs *FsSuper) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt32(uint32(fs.Size))
	enc.PutInt32(uint32(fs.NBlocks))
	enc.PutInt32(uint32(fs.NInodes))
	return enc.Finish()
}

// InodeStart is the first block of the inode table.
func (fs *FsSuper) InodeStart() common.Bnum {
	return common.SUPERBLK + 1
}

// NumInodeBlocks is the size of the inode table in blocks.
func (fs *FsSuper) NumInodeBlocks() uint64 {
	return fs.NInodes/common.INODEBLK + 1
}

// BitmapStart is the first block of the free-block bitmap.
func (fs *FsSuper) BitmapStart() common.Bnum {
	return fs.InodeStart() + fs.NumInodeBlocks()
}

// NumBitmapBlocks is the size of the bitmap in blocks.
func (fs *FsSuper) NumBitmapBlocks() uint64 {
	return fs.Size/common.NBITBLOCK + 1
}

// DataStart is the first block of the data region.
func (fs *FsSuper) DataStart() common.Bnum {
	return fs.NumInodeBlocks() + fs.NumBitmapBlocks() + 2
}

// NumDataBlocks is the number of blocks in [DataStart, Size).
func (fs *FsSuper) NumDataBlocks() uint64 {
	return fs.Size - fs.DataStart()
}

// InRange reports whether bn is a valid data-region address.
func (fs *FsSuper) InRange(bn common.Bnum) bool {
	return bn >= fs.DataStart() && bn < fs.Size
}

// Inum2Addr locates inode inum in the table: the block holding it and
// the record's byte offset within that block.
func (fs *FsSuper) Inum2Addr(inum common.Inum) (common.Bnum, uint64) {
	return fs.InodeStart() + uint64(inum)/common.INODEBLK,
		(uint64(inum) % common.INODEBLK) * common.INODESZ
}
