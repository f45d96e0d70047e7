package domain

import "context"

// CatalogSource downloads fonts from the hosted font catalog.
type CatalogSource interface {
	// FetchFamily returns one font file for the family, or ErrFamilyNotFound.
	FetchFamily(ctx context.Context, family string) (RawFile, error)
}

// DirectorySource lists font files of a remote repository directory.
type DirectorySource interface {
	// ListFontFiles walks the directory recursively and returns every
	// recognized font file. Fails with ErrSourceUnreachable.
	ListFontFiles(ctx context.Context, repoURL string) ([]RawFile, error)
}
