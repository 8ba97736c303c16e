package disk

import (
	"fmt"

	"golang.org/x/sys/unix"
)

var _ Disk = (*Image)(nil)

// Image is a read-only filesystem image backed by a shared file
// mapping. The host kernel caches the pages; nothing is ever copied or
// cached here.
type Image struct {
	fd        int
	bytes     []byte
	numBlocks uint64
}

// OpenImage maps the image file at path for reading.
func OpenImage(path string) (*Image, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if stat.Size == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("empty image %s", path)
	}
	bytes, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Image{
		fd:        fd,
		bytes:     bytes,
		numBlocks: uint64(stat.Size) / BlockSize,
	}, nil
}

// Read returns block a of the image. The returned slice aliases the
// mapping and must not be written to.
func (d *Image) Read(a uint64) (Block, error) {
	if a >= d.numBlocks {
		return nil, fmt.Errorf("out-of-bounds read at %v", a)
	}
	return d.bytes[a*BlockSize : (a+1)*BlockSize], nil
}

func (d *Image) Size() (uint64, error) {
	return d.numBlocks, nil
}

func (d *Image) Close() error {
	err := unix.Munmap(d.bytes)
	if err != nil {
		return err
	}
	return unix.Close(d.fd)
}
