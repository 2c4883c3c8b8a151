package apperrors

type Code string

const (
	CodeNotFound             Code = "NOT_FOUND"
	CodeWalletNotFound       Code = "WALLET_NOT_FOUND"
	CodeAccountMismatch      Code = "ACCOUNT_MISMATCH"
	CodeInvalidSeed          Code = "INVALID_SEED"
	CodeLocked               Code = "LOCKED"
	CodeSessionExpired       Code = "SESSION_EXPIRED"
	CodeIntegrityCheckFailed Code = "INTEGRITY_CHECK_FAILED"
	CodeDecryptionFailed     Code = "DECRYPTION_FAILED"
	CodeCorruptRecord        Code = "CORRUPT_RECORD"
)
