// Package collection builds the ordered image sequence an annotation session
// pages through.
//
// Index lists a single directory, keeps files with a collection image
// extension (case-insensitive) and sorts them in natural order, so
// "img2.png" precedes "img10.png". The result is immutable; sessions
// re-index only when asked to.
//
// Watch reports images appearing or disappearing in an indexed directory so
// a session can flag its sequence as stale without re-indexing implicitly.
package collection
