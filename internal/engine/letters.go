package engine

import "math/rand/v2"

// PickLetter draws one letter uniformly. Rooms are built with at least one
// letter, so an empty set here means a construction bug.
func PickLetter(letters []string) string {
	if len(letters) == 0 {
		panic("engine: PickLetter called with an empty letter set")
	}
	return letters[rand.IntN(len(letters))]
}
