package fileutil

// Releaser releases a lock taken on a file.
type Releaser interface {
	Release() error
}
