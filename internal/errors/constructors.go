package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *BuilderError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(cause error) *BuilderError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration invalid")
}

func ValidationFailed(field, reason string) *BuilderError {
	return New(CategoryValidation, SeverityFatal, "invalid "+field+": "+reason).
		WithContext("field", field).
		WithContext("reason", reason)
}

// Input enumeration errors

// InputNotFound is recorded for an input that is neither a file, a directory
// nor a zip container with an internal prefix. The run continues.
func InputNotFound(input string, cause error) *BuilderError {
	return Wrap(cause, CategoryInput, SeverityWarning, "not a valid file or directory").
		WithContext("input", input)
}

// Resolution errors

func ManifestLoadFailed(path string, cause error) *BuilderError {
	return Wrap(cause, CategoryManifest, SeverityFatal, "manifest could not be loaded").
		WithContext("path", path)
}

// ManifestBindingConflict reports a manifest row matching a second file.
func ManifestBindingConflict(row, file string, cause error) *BuilderError {
	return Wrap(cause, CategoryManifest, SeverityFatal, "manifest row matched more than one file").
		WithContext("row", row).
		WithContext("file", file)
}

func DetectorUnavailable(detector string, cause error) *BuilderError {
	return Wrap(cause, CategoryDetector, SeverityFatal, "detector not available").
		WithContext("detector", detector)
}

// Derivation errors

func DerivationIndexFailed(path string, cause error) *BuilderError {
	return Wrap(cause, CategoryDerivation, SeverityFatal, "derivation index could not be loaded").
		WithContext("path", path)
}

// Archive errors

func OutputExists(path string, cause error) *BuilderError {
	return Wrap(cause, CategoryArchive, SeverityFatal, "archive already exists (use --append or --overwrite)").
		WithContext("path", path)
}

func ArchiveWriteFailed(url string, cause error) *BuilderError {
	return Wrap(cause, CategoryArchive, SeverityFatal, "record could not be written").
		WithContext("url", url)
}

func FileSystemError(operation string, cause error) *BuilderError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "filesystem operation failed").
		WithContext("operation", operation)
}
