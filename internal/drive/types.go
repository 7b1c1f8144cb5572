package drive

// FolderMimeType is the MIME type for Google Drive folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// FileRef is a transient projection of provider-side file metadata. It is
// fetched fresh per request and never cached beyond a request's lifetime.
type FileRef struct {
	// ID is the unique identifier for the file
	ID string `json:"id"`

	// Name is the name of the file
	Name string `json:"name"`

	// MimeType is the MIME type of the file
	MimeType string `json:"mimeType"`

	// Size is the size of the file in bytes; authoritative only for
	// non-folder entries
	Size int64 `json:"size,omitempty"`

	// Parents are the IDs of the parent folders
	Parents []string `json:"parents,omitempty"`
}

// IsFolder reports whether the entry is a Drive folder.
func (f *FileRef) IsFolder() bool {
	return f.MimeType == FolderMimeType
}
