// Package store persists note documents and the program/folder registries.
// The filesystem implementation writes one JSON document per note; a hosted
// document/blob backend can slot in behind the same interfaces.
package store

import "voicenotes-go/internal/types"

// NotesStore is the storage contract for note metadata. Writes are
// whole-record replace; a given note's pipeline is its sole writer for
// almost all of its lifecycle.
type NotesStore interface {
	Save(baseID string, note *types.Note) error
	Load(baseID string) (*types.Note, error)
	List() ([]*types.Note, error)
	Delete(baseID string) error
}

// MediaStore is the blob contract used when audio lives in a hosted backend
// instead of on local disk.
type MediaStore interface {
	Upload(data []byte, mime string) (string, error)
	Download(id string) ([]byte, error)
	Delete(id string) error
}
