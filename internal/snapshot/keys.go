package snapshot

// Snapshot keys. Each is stored as <cache dir>/<key>.json.
const (
	KeyEVStatus      = "evStatus"
	KeyRhizome       = "rhizome"
	KeyRhizomePhotos = "rhizomePhotos"
)
