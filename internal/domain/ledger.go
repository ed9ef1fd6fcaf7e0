package domain

import "context"

// Fixed layout of the ledgers directory under the user's documents folder.
const (
	AppDirName       = "Ironbank"
	LedgersDirName   = "ledgers"
	LedgerExt        = ".json"
	TutorialFilename = "tutorial.ledger.json"
	ResourcesDirName = "resources"
)

// LedgerSummary is one entry of a ledgers directory listing.
// The json names match what the front-end already consumes.
type LedgerSummary struct {
	Name       string `json:"name"`
	Filename   string `json:"filename"`
	Path       string `json:"path"`
	ModifiedAt int64  `json:"modified"`
	SizeBytes  int64  `json:"size"`
}

// DocumentsLocator resolves the platform's user documents folder.
type DocumentsLocator interface {
	DocumentsDir() (string, error)
}

// ResourceLocator finds bundled read-only resources.
type ResourceLocator interface {
	// Find returns the path of the first candidate holding name, or ErrResourceMissing.
	Find(name string) (string, error)
	// ReadFile returns the contents of the first candidate holding name.
	ReadFile(name string) ([]byte, error)
}

// FileManager opens a directory in the host's file browser without waiting for it.
type FileManager interface {
	Open(ctx context.Context, dir string) error
	Name() string
}

// LedgerRepository is the file-level storage behind the ledger service.
type LedgerRepository interface {
	// Dir resolves (and creates) the ledgers directory.
	Dir() (string, error)
	List() ([]LedgerSummary, error)
	Read(path string) (string, error)
	Save(filename, content string) (string, error)
	WriteName(filename string, data []byte) (string, error)
	Delete(path string) error
	Exists(filename string) (bool, error)
}
