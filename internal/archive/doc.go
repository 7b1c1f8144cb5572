// Package archive builds ZIP archives of Drive folders and file sets on the
// fly, streaming the result to the client as it is produced.
//
// The assembler first walks the folder tree into an ordered worklist, then
// fetches file contents with bounded concurrency while a single writer emits
// entries in worklist order. A failed fetch aborts the job without writing
// the ZIP central directory, so clients can detect the truncated archive.
package archive
