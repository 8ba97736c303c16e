// Package fsck verifies the structural invariants of an xv6
// filesystem image. Checking is read-only and fail-fast: the first
// violated invariant is returned and nothing else runs.
//
// The checks run in a fixed order so a given image always produces the
// same diagnostic: a pass over the inode table (type tags, address
// ranges, root and directory structure, bitmap underclaims), then the
// bitmap overclaim scan, then duplicate-address detection, then the
// directory-tree reachability and link-count pass.
package fsck

import (
	"github.com/mit-pdos/xv6-fsck/bitmap"
	"github.com/mit-pdos/xv6-fsck/common"
	"github.com/mit-pdos/xv6-fsck/dir"
	"github.com/mit-pdos/xv6-fsck/disk"
	"github.com/mit-pdos/xv6-fsck/inode"
	"github.com/mit-pdos/xv6-fsck/super"
	"github.com/mit-pdos/xv6-fsck/util"
)

type checker struct {
	d      disk.Disk
	fs     *super.FsSuper
	inodes []inode.Dinode
	bm     bitmap.Bitmap
}

// Check validates the image on d and returns the first violation
// found, or nil if the image is consistent.
func Check(d disk.Disk) error {
	fs, err := super.MkFsSuper(d)
	if err != nil {
		return err
	}
	inodes, err := inode.ReadTable(d, fs)
	if err != nil {
		return err
	}
	bm, err := bitmap.Read(d, fs)
	if err != nil {
		return err
	}
	c := &checker{d: d, fs: fs, inodes: inodes, bm: bm}

	if err := c.checkInodes(); err != nil {
		return err
	}
	if err := c.checkBitmapUsed(); err != nil {
		return err
	}
	if err := c.checkUniqueness(); err != nil {
		return err
	}
	return c.checkReferences()
}

// checkInodes makes one pass over the inode table applying the
// per-inode checks: type validity, address ranges, root and directory
// structure, and used-but-unmarked bitmap bits.
func (c *checker) checkInodes() error {
	for inum := common.Inum(0); uint64(inum) < c.fs.NInodes; inum++ {
		ino := &c.inodes[inum]
		if inum == common.ROOTINUM && ino.Type == inode.TypeFree {
			return ErrMissingRoot
		}
		if !ino.Type.Allocated() {
			continue
		}
		if err := checkType(ino); err != nil {
			return err
		}
		if err := c.checkAddrs(ino); err != nil {
			return err
		}
		if inum == common.ROOTINUM {
			if ino.Type != inode.TypeDir {
				return ErrMissingRoot
			}
			if err := c.checkRoot(ino); err != nil {
				return err
			}
			if err := c.checkDir(inum, ino); err != nil {
				return err
			}
		} else if ino.Type == inode.TypeDir {
			if err := c.checkDir(inum, ino); err != nil {
				return err
			}
		}
		if err := c.checkMarked(ino); err != nil {
			return err
		}
	}
	return nil
}

// checkType validates the type tag of an allocated inode.
func checkType(ino *inode.Dinode) error {
	if ino.Type != inode.TypeDir && ino.Type != inode.TypeFile &&
		ino.Type != inode.TypeDev {
		return ErrBadInode
	}
	return nil
}

// checkAddrs range-checks every nonzero address the inode references.
// Zero addresses mark unused slots and are never dereferenced.
func (c *checker) checkAddrs(ino *inode.Dinode) error {
	for _, a := range ino.Direct() {
		if a != common.NULLBNUM && !c.fs.InRange(a) {
			return ErrBadDirectAddr
		}
	}
	ind := ino.Indirect()
	if ind == common.NULLBNUM {
		return nil
	}
	if !c.fs.InRange(ind) {
		return ErrBadIndirectAddr
	}
	addrs, err := inode.ReadIndirect(c.d, ind)
	if err != nil {
		return err
	}
	for _, a := range addrs {
		if a != common.NULLBNUM && !c.fs.InRange(a) {
			return ErrBadIndirectAddr
		}
	}
	return nil
}

// checkRoot validates that the root directory's first block opens with
// a self-referential `.` and `..`.
func (c *checker) checkRoot(ino *inode.Dinode) error {
	bn := ino.Addrs[0]
	if bn == common.NULLBNUM {
		return ErrMissingRoot
	}
	blk, err := c.d.Read(bn)
	if err != nil {
		return err
	}
	des := dir.Entries(blk)
	if des[0].Name != "." || des[0].Inum != common.ROOTINUM {
		return ErrMissingRoot
	}
	if des[1].Name != ".." || des[1].Inum != common.ROOTINUM {
		return ErrMissingRoot
	}
	return nil
}

// checkDir scans a directory's direct blocks for its `.` and `..`
// entries. `.` must name the directory itself; `..` must name the
// directory itself only at the root.
func (c *checker) checkDir(inum common.Inum, ino *inode.Dinode) error {
	foundDot := false
	foundDotDot := false
	for _, bn := range ino.Direct() {
		if bn == common.NULLBNUM {
			continue
		}
		blk, err := c.d.Read(bn)
		if err != nil {
			return err
		}
		for _, de := range dir.Entries(blk) {
			if de.Name == "." {
				foundDot = true
				if de.Inum != inum {
					return ErrMalformedDir
				}
			} else if de.Name == ".." {
				foundDotDot = true
				atRoot := inum == common.ROOTINUM
				if (atRoot && de.Inum != inum) || (!atRoot && de.Inum == inum) {
					return ErrMissingRoot
				}
			}
			if foundDot && foundDotDot {
				break
			}
		}
		if foundDot && foundDotDot {
			break
		}
	}
	if !foundDot || !foundDotDot {
		return ErrMalformedDir
	}
	return nil
}

// checkMarked verifies that every block the inode uses has its bitmap
// bit set.
func (c *checker) checkMarked(ino *inode.Dinode) error {
	for _, a := range ino.Addrs {
		if a != common.NULLBNUM && !c.bm.Test(a) {
			return ErrBitmapUnderclaim
		}
	}
	ind := ino.Indirect()
	if ind == common.NULLBNUM {
		return nil
	}
	addrs, err := inode.ReadIndirect(c.d, ind)
	if err != nil {
		return err
	}
	for _, a := range addrs {
		if a != common.NULLBNUM && !c.bm.Test(a) {
			return ErrBitmapUnderclaim
		}
	}
	return nil
}

// checkBitmapUsed verifies the other direction of bitmap consistency:
// every data-region bit that is set corresponds to a block some inode
// actually uses.
func (c *checker) checkBitmapUsed() error {
	used := make([]bool, c.fs.NumDataBlocks())
	for i := range c.inodes {
		ino := &c.inodes[i]
		if !ino.Type.Allocated() {
			continue
		}
		for _, a := range ino.Addrs {
			if a != common.NULLBNUM {
				used[a-c.fs.DataStart()] = true
			}
		}
		ind := ino.Indirect()
		if ind == common.NULLBNUM {
			continue
		}
		addrs, err := inode.ReadIndirect(c.d, ind)
		if err != nil {
			return err
		}
		for _, a := range addrs {
			if a != common.NULLBNUM {
				used[a-c.fs.DataStart()] = true
			}
		}
	}
	for i, u := range used {
		bn := c.fs.DataStart() + uint64(i)
		if !u && c.bm.Test(bn) {
			util.DPrintf(1, "checkBitmapUsed: block %d marked but unused\n", bn)
			return ErrBitmapOverclaim
		}
	}
	return nil
}

// checkUniqueness verifies that no data block is claimed twice,
// counting direct-address claims and indirect-address claims
// separately. A block claimed once in each class is not flagged; the
// two counters are deliberately independent.
func (c *checker) checkUniqueness() error {
	direct := make([]uint32, c.fs.NumDataBlocks())
	indirect := make([]uint32, c.fs.NumDataBlocks())
	for i := range c.inodes {
		ino := &c.inodes[i]
		if !ino.Type.Allocated() {
			continue
		}
		for _, a := range ino.Direct() {
			if a != common.NULLBNUM {
				direct[a-c.fs.DataStart()]++
			}
		}
		ind := ino.Indirect()
		if ind == common.NULLBNUM {
			continue
		}
		addrs, err := inode.ReadIndirect(c.d, ind)
		if err != nil {
			return err
		}
		for _, a := range addrs {
			if a != common.NULLBNUM {
				indirect[a-c.fs.DataStart()]++
			}
		}
	}
	for i := range direct {
		if direct[i] > 1 {
			return ErrDupDirectAddr
		}
		if indirect[i] > 1 {
			return ErrDupIndirectAddr
		}
	}
	return nil
}

// dirDataBlocks collects every data block of a directory: its direct
// blocks and the blocks its indirect block names.
func (c *checker) dirDataBlocks(ino *inode.Dinode) ([]common.Bnum, error) {
	var bns []common.Bnum
	for _, a := range ino.Direct() {
		if a != common.NULLBNUM {
			bns = append(bns, a)
		}
	}
	ind := ino.Indirect()
	if ind == common.NULLBNUM {
		return bns, nil
	}
	addrs, err := inode.ReadIndirect(c.d, ind)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if a != common.NULLBNUM {
			bns = append(bns, a)
		}
	}
	return bns, nil
}

// checkReferences walks the directory tree from the root with an
// explicit stack, counts how many entries name each inode, and
// validates the counts against allocation state and link counts.
// Inodes 0 and 1 are implicitly rooted. Each directory is scanned at
// most once, so a cyclic tree cannot loop the traversal.
func (c *checker) checkReferences() error {
	refs := make([]uint64, c.fs.NInodes)
	refs[common.NULLINUM]++
	refs[common.ROOTINUM]++

	visited := make([]bool, c.fs.NInodes)
	visited[common.ROOTINUM] = true
	stack := []common.Inum{common.ROOTINUM}
	for len(stack) > 0 {
		inum := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ino := &c.inodes[inum]
		if ino.Type != inode.TypeDir {
			continue
		}
		bns, err := c.dirDataBlocks(ino)
		if err != nil {
			return err
		}
		for _, bn := range bns {
			blk, err := c.d.Read(bn)
			if err != nil {
				return err
			}
			for _, de := range dir.Entries(blk) {
				if de.Inum == common.NULLINUM || de.Name == "." || de.Name == ".." {
					continue
				}
				if uint64(de.Inum) >= c.fs.NInodes {
					return ErrMalformedDir
				}
				refs[de.Inum]++
				if c.inodes[de.Inum].Type == inode.TypeDir && !visited[de.Inum] {
					visited[de.Inum] = true
					stack = append(stack, de.Inum)
				}
			}
		}
	}

	for inum := common.Inum(2); uint64(inum) < c.fs.NInodes; inum++ {
		ino := &c.inodes[inum]
		if ino.Type.Allocated() && refs[inum] == 0 {
			return ErrUnrefInode
		}
		if refs[inum] > 0 && !ino.Type.Allocated() {
			return ErrDanglingRef
		}
		if ino.Type == inode.TypeFile && uint64(ino.Nlink) != refs[inum] {
			return ErrBadLinkCount
		}
		if ino.Type == inode.TypeDir && refs[inum] > 1 {
			return ErrDupDir
		}
	}
	return nil
}
