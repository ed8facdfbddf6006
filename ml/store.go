package ml

// ModelStore is durable storage for serialized network weights keyed by a
// model identifier. Absence is not an error: Load returns (nil, nil) when no
// weights exist for the id.
type ModelStore interface {
	Exists(id string) bool
	Load(id string) ([]byte, error)
	Save(id string, weights []byte) error
}

// LoadNetwork looks up persisted weights for the id and decodes them.
// It returns (nil, nil) when the store has nothing for the id, so callers
// can fall back to training.
func LoadNetwork(store ModelStore, id string) (*Network, error) {
	blob, err := store.Load(id)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, nil
	}
	return NetworkFromWeights(blob)
}
