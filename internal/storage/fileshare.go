package storage

// NewFileShareStorage builds the STORAGE_TYPE=fileshare backend. No Azure
// Files (or other network-share) SDK exists anywhere in the retrieved
// example pack, so this backend is the same FileStorage code path pointed
// at a mount path the deployment is responsible for making available — not
// a distinct adapter. See DESIGN.md.
func NewFileShareStorage(mountPath string) (*FileStorage, error) {
	return NewFileStorage(mountPath)
}
