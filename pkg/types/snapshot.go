package types

// RoomSnapshot is returned by GET /rooms/{id}.
type RoomSnapshot struct {
	ID         string   `json:"id"`
	Phase      string   `json:"phase"`
	Players    []string `json:"players"`
	Categories []string `json:"categories"`
}
