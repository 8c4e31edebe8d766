package updater

import "fmt"

// Kind classifies an update failure.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindNoCatalogURL
	KindUnparseableURL
	KindNotOnCatalog
	KindNoFiles
	KindDistributionNotAllowed
	KindDownloadFailed
	KindIntegrityFailed
	KindUpdateFailed
)

var kindNames = map[Kind]string{
	KindNotFound:               "not_found",
	KindNoCatalogURL:           "no_catalog_url",
	KindUnparseableURL:         "unparseable_url",
	KindNotOnCatalog:           "not_on_catalog",
	KindNoFiles:                "no_files",
	KindDistributionNotAllowed: "distribution_not_allowed",
	KindDownloadFailed:         "download_failed",
	KindIntegrityFailed:        "integrity_failed",
	KindUpdateFailed:           "update_failed",
}

var kindMessages = map[Kind]string{
	KindNotFound:               "Mod not found in the current list",
	KindNoCatalogURL:           "This mod has no CurseForge URL associated",
	KindUnparseableURL:         "Could not extract mod identifier from CurseForge URL",
	KindNotOnCatalog:           "Could not find this mod on CurseForge",
	KindNoFiles:                "No files available for this mod on CurseForge",
	KindDistributionNotAllowed: "Download is disabled for this mod (distribution not allowed by author)",
	KindDownloadFailed:         "Failed to download the mod file",
	KindIntegrityFailed:        "Downloaded file integrity check failed",
	KindUpdateFailed:           "Update failed",
}

// String returns a stable identifier used in logs and metrics.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message returns the user-facing message for k.
func (k Kind) Message() string {
	return kindMessages[k]
}

// Error is an update failure. Detail carries context such as the file or
// slug involved; Err is the underlying cause, if any.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Message()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}
