package fsck

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/xv6-fsck/common"
	"github.com/mit-pdos/xv6-fsck/dir"
	"github.com/mit-pdos/xv6-fsck/disk"
	"github.com/mit-pdos/xv6-fsck/inode"
	"github.com/mit-pdos/xv6-fsck/mkfs"
	"github.com/mit-pdos/xv6-fsck/super"
)

// newFs builds a minimal image (root directory only) on a 64-block
// in-memory disk with 16 inodes; dataStart is block 6.
func newFs(t *testing.T) (*mkfs.Fs, disk.WriteDisk) {
	d := disk.NewMemDisk(64)
	fs, err := mkfs.New(d, 64, 16)
	assert.NoError(t, err)
	return fs, d
}

func check(t *testing.T, fs *mkfs.Fs, d disk.Disk) error {
	assert.NoError(t, fs.Flush())
	return Check(d)
}

// rewriteDirBlock edits one entry of a directory's first data block on
// the flushed image.
func rewriteDirBlock(t *testing.T, fs *mkfs.Fs, dirInum common.Inum, slot uint64, de dir.Dirent) {
	bn := fs.Inodes[dirInum].Addrs[0]
	blk, err := fs.D.Read(bn)
	assert.NoError(t, err)
	dir.PutEntry(blk, slot, de)
	assert.NoError(t, fs.D.Write(bn, blk))
}

func TestCleanMinimalImage(t *testing.T) {
	fs, d := newFs(t)
	assert.NoError(t, check(t, fs, d))
}

func TestCleanPopulatedImage(t *testing.T) {
	assert := assert.New(t)
	fs, d := newFs(t)

	_, err := fs.AddFile(common.ROOTINUM, "README")
	assert.NoError(err)
	sub, err := fs.AddDir(common.ROOTINUM, "usr")
	assert.NoError(err)
	_, err = fs.AddFile(sub, "echo")
	assert.NoError(err)

	// a device inode: link counts are only enforced for files
	dev, err := fs.AddFile(common.ROOTINUM, "console")
	assert.NoError(err)
	fs.Inodes[dev].Type = inode.TypeDev
	fs.Inodes[dev].Nlink = 7

	// a file with file content, including an indirect block
	f, err := fs.AddFile(common.ROOTINUM, "big")
	assert.NoError(err)
	fs.Inodes[f].Addrs[0] = fs.AllocBlock()
	ind := fs.AllocBlock()
	fs.Inodes[f].Addrs[common.NDIRECT] = ind
	assert.NoError(fs.D.Write(ind, inode.EncodeIndirect([]common.Bnum{fs.AllocBlock()})))

	// free inodes are skipped entirely, garbage addresses included
	fs.Inodes[9].Addrs[0] = 9999

	assert.NoError(check(t, fs, d))
}

func TestIdempotent(t *testing.T) {
	assert := assert.New(t)
	fs, d := newFs(t)
	f, err := fs.AddFile(common.ROOTINUM, "a")
	assert.NoError(err)
	fs.Inodes[f].Nlink = 2

	err = check(t, fs, d)
	assert.Equal(ErrBadLinkCount, err)
	assert.Equal(err, Check(d), "same image, same diagnostic")
}

func TestBadInodeType(t *testing.T) {
	fs, d := newFs(t)
	fs.Inodes[2] = inode.Dinode{Type: 5, Nlink: 1}
	assert.Equal(t, ErrBadInode, check(t, fs, d))
}

func TestBadDirectAddress(t *testing.T) {
	assert := assert.New(t)

	fs, d := newFs(t)
	f, err := fs.AddFile(common.ROOTINUM, "a")
	assert.NoError(err)
	fs.Inodes[f].Addrs[0] = fs.Super.Size // one past the end
	assert.Equal(ErrBadDirectAddr, check(t, fs, d))

	fs, d = newFs(t)
	f, err = fs.AddFile(common.ROOTINUM, "a")
	assert.NoError(err)
	fs.Inodes[f].Addrs[0] = 3 // inside the inode table
	assert.Equal(ErrBadDirectAddr, check(t, fs, d))
}

func TestBadIndirectAddress(t *testing.T) {
	assert := assert.New(t)

	fs, d := newFs(t)
	f, err := fs.AddFile(common.ROOTINUM, "a")
	assert.NoError(err)
	fs.Inodes[f].Addrs[common.NDIRECT] = fs.Super.Size
	assert.Equal(ErrBadIndirectAddr, check(t, fs, d))

	// an in-range indirect block holding an out-of-range address
	fs, d = newFs(t)
	f, err = fs.AddFile(common.ROOTINUM, "a")
	assert.NoError(err)
	ind := fs.AllocBlock()
	fs.Inodes[f].Addrs[common.NDIRECT] = ind
	assert.NoError(fs.D.Write(ind, inode.EncodeIndirect([]common.Bnum{fs.Super.Size})))
	assert.Equal(ErrBadIndirectAddr, check(t, fs, d))
}

func TestMissingRoot(t *testing.T) {
	assert := assert.New(t)

	fs, d := newFs(t)
	fs.Inodes[common.ROOTINUM] = inode.Dinode{}
	assert.Equal(ErrMissingRoot, check(t, fs, d), "free root inode")

	fs, d = newFs(t)
	fs.Inodes[common.ROOTINUM].Type = inode.TypeFile
	assert.Equal(ErrMissingRoot, check(t, fs, d), "root is not a directory")

	fs, d = newFs(t)
	assert.NoError(fs.Flush())
	rewriteDirBlock(t, fs, common.ROOTINUM, 0, dir.Dirent{Inum: 2, Name: "."})
	assert.Equal(ErrMissingRoot, Check(d), "root `.` names another inode")

	fs, d = newFs(t)
	assert.NoError(fs.Flush())
	rewriteDirBlock(t, fs, common.ROOTINUM, 1, dir.Dirent{Inum: 2, Name: ".."})
	assert.Equal(ErrMissingRoot, Check(d), "root `..` names another inode")
}

func TestMalformedDirectory(t *testing.T) {
	assert := assert.New(t)

	fs, d := newFs(t)
	sub, err := fs.AddDir(common.ROOTINUM, "usr")
	assert.NoError(err)
	assert.NoError(fs.Flush())
	rewriteDirBlock(t, fs, sub, 1, dir.Dirent{}) // drop `..`
	assert.Equal(ErrMalformedDir, Check(d))

	fs, d = newFs(t)
	sub, err = fs.AddDir(common.ROOTINUM, "usr")
	assert.NoError(err)
	assert.NoError(fs.Flush())
	rewriteDirBlock(t, fs, sub, 0, dir.Dirent{Inum: 5, Name: "."})
	assert.Equal(ErrMalformedDir, Check(d), "`.` names another inode")

	// `..` naming the directory itself reuses the root diagnostic
	fs, d = newFs(t)
	sub, err = fs.AddDir(common.ROOTINUM, "usr")
	assert.NoError(err)
	assert.NoError(fs.Flush())
	rewriteDirBlock(t, fs, sub, 1, dir.Dirent{Inum: sub, Name: ".."})
	assert.Equal(ErrMissingRoot, Check(d))
}

func TestBitmapUnderclaim(t *testing.T) {
	fs, d := newFs(t)
	fs.Bm.Clear(fs.Inodes[common.ROOTINUM].Addrs[0])
	assert.Equal(t, ErrBitmapUnderclaim, check(t, fs, d))
}

func TestBitmapOverclaim(t *testing.T) {
	fs, d := newFs(t)
	fs.Bm.Set(fs.Super.DataStart() + 5)
	assert.Equal(t, ErrBitmapOverclaim, check(t, fs, d))
}

func TestDuplicateDirectAddress(t *testing.T) {
	assert := assert.New(t)
	fs, d := newFs(t)
	f1, err := fs.AddFile(common.ROOTINUM, "a")
	assert.NoError(err)
	f2, err := fs.AddFile(common.ROOTINUM, "b")
	assert.NoError(err)
	bn := fs.AllocBlock()
	fs.Inodes[f1].Addrs[0] = bn
	fs.Inodes[f2].Addrs[0] = bn
	assert.Equal(ErrDupDirectAddr, check(t, fs, d))
}

func TestDuplicateIndirectAddress(t *testing.T) {
	assert := assert.New(t)
	fs, d := newFs(t)
	f, err := fs.AddFile(common.ROOTINUM, "a")
	assert.NoError(err)
	ind := fs.AllocBlock()
	bn := fs.AllocBlock()
	fs.Inodes[f].Addrs[common.NDIRECT] = ind
	assert.NoError(fs.D.Write(ind, inode.EncodeIndirect([]common.Bnum{bn, bn})))
	assert.Equal(ErrDupIndirectAddr, check(t, fs, d))
}

// A block claimed once as a direct address and once as an indirect
// address is not flagged: the two claim classes are counted
// independently.
func TestCrossClassClaimAccepted(t *testing.T) {
	assert := assert.New(t)
	fs, d := newFs(t)
	f1, err := fs.AddFile(common.ROOTINUM, "a")
	assert.NoError(err)
	f2, err := fs.AddFile(common.ROOTINUM, "b")
	assert.NoError(err)
	bn := fs.AllocBlock()
	ind := fs.AllocBlock()
	fs.Inodes[f1].Addrs[0] = bn
	fs.Inodes[f2].Addrs[common.NDIRECT] = ind
	assert.NoError(fs.D.Write(ind, inode.EncodeIndirect([]common.Bnum{bn})))
	assert.NoError(check(t, fs, d))
}

func TestUnreferencedInode(t *testing.T) {
	fs, d := newFs(t)
	fs.Inodes[2] = inode.Dinode{Type: inode.TypeFile, Nlink: 1}
	assert.Equal(t, ErrUnrefInode, check(t, fs, d))
}

func TestDanglingReference(t *testing.T) {
	fs, d := newFs(t)
	err := fs.AddDirent(common.ROOTINUM, dir.Dirent{Inum: 2, Name: "ghost"})
	assert.NoError(t, err)
	assert.Equal(t, ErrDanglingRef, check(t, fs, d))
}

func TestBadLinkCount(t *testing.T) {
	assert := assert.New(t)

	fs, d := newFs(t)
	f, err := fs.AddFile(common.ROOTINUM, "a")
	assert.NoError(err)
	fs.Inodes[f].Nlink = 2
	assert.Equal(ErrBadLinkCount, check(t, fs, d))

	// a real hard link brings the count back in agreement
	fs, d = newFs(t)
	f, err = fs.AddFile(common.ROOTINUM, "a")
	assert.NoError(err)
	assert.NoError(fs.AddDirent(common.ROOTINUM, dir.Dirent{Inum: f, Name: "b"}))
	fs.Inodes[f].Nlink = 2
	assert.NoError(check(t, fs, d))
}

func TestDuplicateDirectory(t *testing.T) {
	assert := assert.New(t)
	fs, d := newFs(t)
	sub, err := fs.AddDir(common.ROOTINUM, "usr")
	assert.NoError(err)
	assert.NoError(fs.AddDirent(common.ROOTINUM, dir.Dirent{Inum: sub, Name: "usr2"}))
	assert.Equal(ErrDupDir, check(t, fs, d))
}

// A directory entry naming an inode past the table fails rather than
// indexing out of bounds.
func TestDirentInumOutOfRange(t *testing.T) {
	fs, d := newFs(t)
	err := fs.AddDirent(common.ROOTINUM, dir.Dirent{Inum: 500, Name: "x"})
	assert.NoError(t, err)
	assert.Equal(t, ErrMalformedDir, check(t, fs, d))
}

// A directory linked back to an ancestor terminates: the ancestor is
// reported as appearing twice instead of looping the traversal.
func TestDirectoryCycle(t *testing.T) {
	assert := assert.New(t)
	fs, d := newFs(t)
	a, err := fs.AddDir(common.ROOTINUM, "a")
	assert.NoError(err)
	b, err := fs.AddDir(a, "b")
	assert.NoError(err)
	assert.NoError(fs.AddDirent(b, dir.Dirent{Inum: a, Name: "loop"}))
	assert.Equal(ErrDupDir, check(t, fs, d))
}

func TestDeepTree(t *testing.T) {
	assert := assert.New(t)
	fs, d := newFs(t)
	parent := common.ROOTINUM
	for i := 0; i < 12; i++ {
		sub, err := fs.AddDir(parent, "d")
		assert.NoError(err)
		parent = sub
	}
	assert.NoError(check(t, fs, d))
}

func TestCorruptSuperblock(t *testing.T) {
	assert := assert.New(t)
	fs, d := newFs(t)
	assert.NoError(fs.Flush())

	// declared size larger than the image
	bad := &super.FsSuper{Size: 128, NBlocks: 120, NInodes: 16}
	assert.NoError(d.Write(common.SUPERBLK, bad.Encode()))
	assert.Equal(ErrCorruptSuper, Check(d))

	// inode count that would put the data region past the image
	bad = &super.FsSuper{Size: 64, NBlocks: 10, NInodes: 4096}
	assert.NoError(d.Write(common.SUPERBLK, bad.Encode()))
	assert.Equal(ErrCorruptSuper, Check(d))
}
