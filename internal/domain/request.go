package domain

// Request is an acquisition request. It is one of CatalogCompare,
// RemoteDirectoryCompare or DirectCompare.
type Request interface {
	Variant() string
	isRequest()
}

// CatalogCompare compares uploaded fonts against the hosted catalog versions
// of the same families.
type CatalogCompare struct {
	After RawCollection
}

// RemoteDirectoryCompare compares the fonts of a remote repository directory
// against the hosted catalog versions of the same families.
type RemoteDirectoryCompare struct {
	RepoURL string
}

// DirectCompare compares two sets of uploaded fonts.
type DirectCompare struct {
	Before RawCollection
	After  RawCollection
}

func (CatalogCompare) Variant() string         { return "catalog" }
func (RemoteDirectoryCompare) Variant() string { return "remote_directory" }
func (DirectCompare) Variant() string          { return "direct" }

func (CatalogCompare) isRequest()         {}
func (RemoteDirectoryCompare) isRequest() {}
func (DirectCompare) isRequest()          {}
