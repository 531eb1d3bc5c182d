package storage

// Paths of the top-level collections in the persisted layout.
const (
	contactsPath    = "contacts"
	tasksPath       = "tasks"
	currentUserPath = "currentUser"
)

// Storage provides typed access to the remote database.
type Storage struct {
	client *Client
}

// New creates a Storage instance for the given database base URL.
func New(baseURL string) (*Storage, error) {
	client, err := NewClient(baseURL)
	if err != nil {
		return nil, err
	}
	return &Storage{client: client}, nil
}
