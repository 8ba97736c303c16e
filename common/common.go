// Package common holds the on-disk constants of the xv6 filesystem
// format and the scalar types shared by every package.
package common

import "github.com/mit-pdos/xv6-fsck/disk"

const (
	// INODESZ is the on-disk size of an inode record.
	INODESZ uint64 = 64

	// NDIRECT is the number of direct addresses in an inode; slot
	// NDIRECT holds the indirect address.
	NDIRECT uint64 = 12

	// NINDIRECT is the number of addresses in an indirect block.
	NINDIRECT uint64 = disk.BlockSize / 4

	// INODEBLK is the number of inode records per block.
	INODEBLK uint64 = disk.BlockSize / INODESZ

	// NBITBLOCK is the number of bitmap bits per block.
	NBITBLOCK uint64 = disk.BlockSize * 8

	// DIRENTSZ is the on-disk size of a directory entry.
	DIRENTSZ uint64 = 16

	// DIRSIZ is the maximum name length in a directory entry.
	DIRSIZ uint64 = 14
)

type Inum uint64
type Bnum = uint64

const (
	NULLINUM Inum = 0
	ROOTINUM Inum = 1
	NULLBNUM Bnum = 0

	// SUPERBLK is the block number of the superblock; block 0 is the
	// boot block.
	SUPERBLK Bnum = 1
)
