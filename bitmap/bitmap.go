// Package bitmap reads the free-block bitmap, one bit per block over
// the whole image, indexed by absolute block number.
package bitmap

import (
	"github.com/mit-pdos/xv6-fsck/common"
	"github.com/mit-pdos/xv6-fsck/disk"
	"github.com/mit-pdos/xv6-fsck/super"
)

// Bitmap is the raw bytes of the bitmap region.
type Bitmap []byte

// Read loads every bitmap block of the image into one contiguous
// byte slice.
func Read(d disk.Disk, fs *super.FsSuper) (Bitmap, error) {
	bm := make(Bitmap, 0, fs.NumBitmapBlocks()*disk.BlockSize)
	for i := uint64(0); i < fs.NumBitmapBlocks(); i++ {
		blk, err := d.Read(fs.BitmapStart() + i)
		if err != nil {
			return nil, err
		}
		bm = append(bm, blk...)
	}
	return bm, nil
}

// Test reports whether block bn is marked in use.
func (bm Bitmap) Test(bn common.Bnum) bool {
	byteNum := bn / 8
	bit := bn % 8
	if byteNum >= uint64(len(bm)) {
		panic("bitmap: block number out of range")
	}
	return bm[byteNum]&(1<<bit) != 0
}

// Set marks block bn in use. Used when constructing images.
func (bm Bitmap) Set(bn common.Bnum) {
	byteNum := bn / 8
	bit := bn % 8
	if byteNum >= uint64(len(bm)) {
		panic("bitmap: block number out of range")
	}
	bm[byteNum] = bm[byteNum] | (1 << bit)
}

// Clear marks block bn free.
func (bm Bitmap) Clear(bn common.Bnum) {
	byteNum := bn / 8
	bit := bn % 8
	if byteNum >= uint64(len(bm)) {
		panic("bitmap: block number out of range")
	}
	bm[byteNum] = bm[byteNum] & ^(1 << bit)
}

// Write stores the bitmap back into the bitmap region of d.
func Write(d disk.WriteDisk, fs *super.FsSuper, bm Bitmap) error {
	for i := uint64(0); i < fs.NumBitmapBlocks(); i++ {
		err := d.Write(fs.BitmapStart()+i, []byte(bm[i*disk.BlockSize:(i+1)*disk.BlockSize]))
		if err != nil {
			return err
		}
	}
	return nil
}
