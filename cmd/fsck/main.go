// Command fsck checks an xv6 filesystem image for structural
// consistency. It prints nothing and exits 0 on a clean image; on the
// first violation it prints one diagnostic to stderr and exits 1.
package main

import (
	"fmt"
	"os"

	"github.com/mit-pdos/xv6-fsck/disk"
	"github.com/mit-pdos/xv6-fsck/fsck"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: fsck <file_system_image>\n")
		os.Exit(1)
	}
	d, err := disk.OpenImage(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: image not found.\n")
		os.Exit(1)
	}
	defer d.Close()

	if err := fsck.Check(d); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v.\n", err)
		os.Exit(1)
	}
}
