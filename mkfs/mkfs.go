// Package mkfs builds xv6 filesystem images. It exists for tests and
// fixtures: construct a well-formed image, optionally poke at the
// tables, and flush the result to a disk.
package mkfs

import (
	"fmt"

	"github.com/mit-pdos/xv6-fsck/bitmap"
	"github.com/mit-pdos/xv6-fsck/common"
	"github.com/mit-pdos/xv6-fsck/dir"
	"github.com/mit-pdos/xv6-fsck/disk"
	"github.com/mit-pdos/xv6-fsck/inode"
	"github.com/mit-pdos/xv6-fsck/super"
	"github.com/mit-pdos/xv6-fsck/util"
)

// Fs is an image under construction. Inodes and Bm are kept in memory
// so callers can edit them freely; Flush writes the current state.
type Fs struct {
	D       disk.WriteDisk
	Super   *super.FsSuper
	Inodes  []inode.Dinode
	Bm      bitmap.Bitmap
	nextBlk common.Bnum
}

// New lays out an empty filesystem with a root directory on d.
// The metadata blocks and the root's data block are marked in the
// bitmap; everything is held in memory until Flush.
func New(d disk.WriteDisk, size uint64, ninodes uint64) (*Fs, error) {
	imgSz, err := d.Size()
	if err != nil {
		return nil, err
	}
	if size > imgSz {
		return nil, fmt.Errorf("mkfs: size %d exceeds disk (%d blocks)", size, imgSz)
	}
	fsuper := &super.FsSuper{Size: size, NInodes: ninodes}
	if fsuper.DataStart() >= size {
		return nil, fmt.Errorf("mkfs: no room for a data region")
	}
	fsuper.NBlocks = fsuper.NumDataBlocks()

	fs := &Fs{
		D:       d,
		Super:   fsuper,
		Inodes:  make([]inode.Dinode, ninodes),
		Bm:      make(bitmap.Bitmap, fsuper.NumBitmapBlocks()*disk.BlockSize),
		nextBlk: fsuper.DataStart(),
	}
	for bn := common.Bnum(0); bn < fsuper.DataStart(); bn++ {
		fs.Bm.Set(bn)
	}

	rootBlk := fs.AllocBlock()
	blk := make(disk.Block, disk.BlockSize)
	dir.PutEntry(blk, 0, dir.Dirent{Inum: common.ROOTINUM, Name: "."})
	dir.PutEntry(blk, 1, dir.Dirent{Inum: common.ROOTINUM, Name: ".."})
	if err := d.Write(rootBlk, blk); err != nil {
		return nil, err
	}
	root := inode.Dinode{Type: inode.TypeDir, Nlink: 1, Size: 2 * common.DIRENTSZ}
	root.Addrs[0] = rootBlk
	fs.Inodes[common.ROOTINUM] = root

	util.DPrintf(1, "mkfs: size %d ninodes %d dataStart %d\n",
		size, ninodes, fsuper.DataStart())
	return fs, nil
}

// AllocBlock claims the next free data block and marks it in the
// bitmap.
func (fs *Fs) AllocBlock() common.Bnum {
	if fs.nextBlk >= fs.Super.Size {
		panic("mkfs: out of data blocks")
	}
	bn := fs.nextBlk
	fs.nextBlk++
	fs.Bm.Set(bn)
	return bn
}

func (fs *Fs) allocInum() (common.Inum, error) {
	for inum := common.Inum(2); uint64(inum) < fs.Super.NInodes; inum++ {
		if fs.Inodes[inum].Type == inode.TypeFree {
			return inum, nil
		}
	}
	return common.NULLINUM, fmt.Errorf("mkfs: out of inodes")
}

// AddDirent appends an entry to the first free slot of dirInum's first
// data block.
func (fs *Fs) AddDirent(dirInum common.Inum, de dir.Dirent) error {
	bn := fs.Inodes[dirInum].Addrs[0]
	if bn == common.NULLBNUM {
		return fmt.Errorf("mkfs: inode %d has no directory block", dirInum)
	}
	blk, err := fs.D.Read(bn)
	if err != nil {
		return err
	}
	des := dir.Entries(blk)
	for slot := uint64(0); slot < dir.EntriesPerBlock; slot++ {
		if des[slot].Inum == common.NULLINUM {
			dir.PutEntry(blk, slot, de)
			fs.Inodes[dirInum].Size += common.DIRENTSZ
			return fs.D.Write(bn, blk)
		}
	}
	return fmt.Errorf("mkfs: directory %d is full", dirInum)
}

// AddFile creates an empty file inode with nlink 1 and links it into
// parent under name.
func (fs *Fs) AddFile(parent common.Inum, name string) (common.Inum, error) {
	inum, err := fs.allocInum()
	if err != nil {
		return common.NULLINUM, err
	}
	fs.Inodes[inum] = inode.Dinode{Type: inode.TypeFile, Nlink: 1}
	if err := fs.AddDirent(parent, dir.Dirent{Inum: inum, Name: name}); err != nil {
		return common.NULLINUM, err
	}
	return inum, nil
}

// AddDir creates a directory inode with `.`/`..` entries and links it
// into parent under name.
func (fs *Fs) AddDir(parent common.Inum, name string) (common.Inum, error) {
	inum, err := fs.allocInum()
	if err != nil {
		return common.NULLINUM, err
	}
	bn := fs.AllocBlock()
	blk := make(disk.Block, disk.BlockSize)
	dir.PutEntry(blk, 0, dir.Dirent{Inum: inum, Name: "."})
	dir.PutEntry(blk, 1, dir.Dirent{Inum: parent, Name: ".."})
	if err := fs.D.Write(bn, blk); err != nil {
		return common.NULLINUM, err
	}
	di := inode.Dinode{Type: inode.TypeDir, Nlink: 1, Size: 2 * common.DIRENTSZ}
	di.Addrs[0] = bn
	fs.Inodes[inum] = di
	if err := fs.AddDirent(parent, dir.Dirent{Inum: inum, Name: name}); err != nil {
		return common.NULLINUM, err
	}
	return inum, nil
}

// Flush writes the superblock, inode table, and bitmap. Data blocks
// are written as they are filled, so after Flush the disk holds the
// complete image.
func (fs *Fs) Flush() error {
	if err := fs.D.Write(common.SUPERBLK, fs.Super.Encode()); err != nil {
		return err
	}
	for i := uint64(0); i < fs.Super.NumInodeBlocks(); i++ {
		blk := make(disk.Block, disk.BlockSize)
		for j := uint64(0); j < common.INODEBLK; j++ {
			inum := i*common.INODEBLK + j
			if inum >= fs.Super.NInodes {
				break
			}
			copy(blk[j*common.INODESZ:], fs.Inodes[inum].Encode())
		}
		if err := fs.D.Write(fs.Super.InodeStart()+i, blk); err != nil {
			return err
		}
	}
	return bitmap.Write(fs.D, fs.Super, fs.Bm)
}
