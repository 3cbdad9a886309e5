package hoststore

// KV is a synchronous string key/value store with a flat namespace,
// modeled after the web storage API. It has no expiry or capacity
// semantics of its own; those live in the layers above.
type KV interface {
	// Get returns the stored value for key, or false if absent.
	Get(key string) (string, bool)

	// Set stores value under key, overwriting any prior value.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Clear deletes every entry in the store.
	Clear() error

	// Len returns the number of stored entries.
	Len() int
}
