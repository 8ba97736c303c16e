// Package disk provides block-granularity access to a filesystem
// image: a read-only memory-mapped view of an image file, and an
// in-memory disk for tests and image construction.
package disk

// Block is a 512-byte buffer
type Block = []byte

// BlockSize is the xv6 filesystem block size.
const BlockSize uint64 = 512

// Disk is a read-only view of a block-addressed image.
type Disk interface {
	// Read reads a disk block by address
	//
	// Expects a < Size().
	Read(a uint64) (Block, error)

	// Size reports how big the image is, in blocks
	Size() (uint64, error)

	// Close releases any resources used by the disk and makes it
	// unusable.
	Close() error
}

// WriteDisk extends Disk with a write path, used to construct images.
type WriteDisk interface {
	Disk

	// Write updates a disk block by address
	//
	// Expects a < Size().
	Write(a uint64, v Block) error
}
