// Package invalidate marks rendered view paths stale after mutations and
// serves versioned cached page data keyed by those paths.
package invalidate

import (
	"net/url"
	"strconv"
	"strings"
)

// Path identifies a rendered view whose data may go stale.
type Path string

// Profile is a user's profile page.
func Profile(username string) Path { return Path("/profile/" + url.PathEscape(username)) }

// ProfilePages covers every profile page at once.
func ProfilePages() Path { return "/profile/[username]" }

// Followers is a user's followers page.
func Followers(username string) Path {
	return Path("/profile/" + url.PathEscape(username) + "/followers")
}

// Game is a game detail page.
func Game(id int64) Path { return Path("/game/" + strconv.FormatInt(id, 10)) }

// Collection is a single collection page.
func Collection(id string) Path { return Path("/collection/" + url.PathEscape(id)) }

// CollectionsIndex is the public collections listing.
func CollectionsIndex() Path { return "/collections" }

// Admin is the admin console.
func Admin() Path { return "/admin" }

// ForGame lists the paths a game mutation (status, log, review) touches.
func ForGame(username string, gameID int64) []Path {
	return []Path{Profile(username), Game(gameID)}
}

// ForCollection lists the paths a collection mutation touches.
func ForCollection(username, collectionID string) []Path {
	return []Path{Profile(username), Collection(collectionID), CollectionsIndex()}
}

// Kind is a low-cardinality label for the path family.
func (p Path) Kind() string {
	s := strings.Trim(string(p), "/")
	head, rest, _ := strings.Cut(s, "/")
	switch head {
	case "profile":
		if strings.HasSuffix(rest, "/followers") {
			return "followers"
		}
		return "profile"
	case "game", "collection", "collections", "admin":
		return head
	default:
		return "other"
	}
}

// Set is an insertion-ordered set of paths.
type Set struct {
	order []Path
	seen  map[Path]struct{}
}

// NewSet builds a set from paths, dropping repeats and empty values.
func NewSet(paths ...Path) *Set {
	s := &Set{seen: make(map[Path]struct{}, len(paths))}
	s.Add(paths...)
	return s
}

// Add appends paths not already present.
func (s *Set) Add(paths ...Path) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := s.seen[p]; ok {
			continue
		}
		s.seen[p] = struct{}{}
		s.order = append(s.order, p)
	}
}

// Paths returns the members in insertion order.
func (s *Set) Paths() []Path {
	out := make([]Path, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the member count.
func (s *Set) Len() int { return len(s.order) }
