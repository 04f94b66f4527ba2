package cli

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	// Vault errors
	ErrVaultNotFound    = "VAULT_NOT_FOUND"
	ErrNotObsidianVault = "NOT_OBSIDIAN_VAULT"
	ErrIndexFailed      = "INDEX_FAILED"
	ErrConfigInvalid    = "CONFIG_INVALID"

	// File errors
	ErrFileNotFound     = "FILE_NOT_FOUND"
	ErrFileReadError    = "FILE_READ_ERROR"
	ErrFileWriteError   = "FILE_WRITE_ERROR"
	ErrFileOutsideVault = "FILE_OUTSIDE_VAULT"

	// Link errors
	ErrLinkInvalid    = "LINK_INVALID"
	ErrLinkUnresolved = "LINK_UNRESOLVED"
	ErrBrokenLinks    = "BROKEN_LINKS"

	// History errors
	ErrDatabaseError   = "DATABASE_ERROR"
	ErrHistoryDisabled = "HISTORY_DISABLED"
	ErrNoRuns          = "NO_RUNS"
	ErrRunNotFound     = "RUN_NOT_FOUND"
	ErrExportCancelled = "EXPORT_CANCELLED"

	// Input errors
	ErrInvalidInput = "INVALID_INPUT"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// Warning codes for non-fatal issues.
const (
	WarnBrokenLink        = "BROKEN_LINK"
	WarnNotObsidian       = "NOT_OBSIDIAN_VAULT"
	WarnHistoryFailed     = "HISTORY_FAILED"
	WarnAssistUnavailable = "ASSIST_UNAVAILABLE"
)
