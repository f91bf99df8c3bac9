// Package microscopy defines the reader capability for random access to
// per-FOV, per-frame, per-channel pixel planes from a multi-FOV acquisition
// file. ND2/CZI decoding itself is a separate collaborator, implemented
// elsewhere; this package only defines the interface the scheduler drives,
// plus an in-memory reference implementation used by tests and the CLI's
// -synthetic smoke-test mode.
package microscopy
