package fsck

import (
	"errors"

	"github.com/mit-pdos/xv6-fsck/super"
)

// Every violation the checker can report. The messages are the
// diagnostics the CLI prints (rendered as "ERROR: <message>.").
var (
	ErrCorruptSuper     = super.ErrCorrupt
	ErrBadInode         = errors.New("bad inode")
	ErrBadDirectAddr    = errors.New("bad direct address in inode")
	ErrBadIndirectAddr  = errors.New("bad indirect address in inode")
	ErrMissingRoot      = errors.New("root directory does not exist")
	ErrMalformedDir     = errors.New("directory not properly formatted")
	ErrBitmapUnderclaim = errors.New("address used by inode but marked free in bitmap")
	ErrBitmapOverclaim  = errors.New("bitmap marks block in use but it is not in use")
	ErrDupDirectAddr    = errors.New("direct address used more than once")
	ErrDupIndirectAddr  = errors.New("indirect address used more than once")
	ErrUnrefInode       = errors.New("inode marked use but not found in a directory")
	ErrDanglingRef      = errors.New("inode referred to in directory but marked free")
	ErrBadLinkCount     = errors.New("bad reference count for file")
	ErrDupDir           = errors.New("directory appears more than once in file system")
)
