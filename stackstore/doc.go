// Package stackstore implements typed, memory-mapped (T,H,W) arrays
// identified by (kind, fov, channel), written atomically via a
// temp-path-then-rename commit and read back via mmap for random frame
// access.
//
// The atomic-publish idiom mirrors github.com/grailbio/bio's
// encoding/pam/pamutil index files (write fully, then make visible in one
// step); the mmap itself is done directly with golang.org/x/sys/unix, the
// same package fusion/kmer_index.go uses for large mmap'd tables, here
// applied to a real (not anonymous) file.
package stackstore
