package interfaces

// StoreInterface is the key-value persistence contract: whole-value reads and
// writes of named aggregate blobs. GetItem reports absence via the bool, not
// an error.
type StoreInterface interface {
	Init() error
	GetItem(key string) ([]byte, bool, error)
	SetItem(key string, value []byte) error
	RemoveItem(key string) error
	Usage() (int64, error)
	Probe() error
	Close()
}
