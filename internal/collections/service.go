package collections

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gramy/gramy/internal/access"
	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/shared"
)

// Service implements collection actions and queries.
type Service struct {
	repo   Repository
	runner *action.Runner
}

// NewService constructs a Service.
func NewService(repo Repository, runner *action.Runner) *Service {
	return &Service{repo: repo, runner: runner}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.Invalid("name", "Name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return shared.Invalid("name", "Name too long")
	}
	return nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return shared.Invalid("description", "Description too long")
	}
	return nil
}

// Authenticate reports whether the caller may manage collections.
func (s *Service) Authenticate(ctx context.Context) action.Result[struct{}] {
	return s.runner.Authenticate(ctx)
}

// load fetches a collection and enforces op. The returned row doubles as the
// query result for reads.
func (s *Service) load(ctx context.Context, ac authctx.Context, id string, op access.Operation) (Collection, error) {
	c, err := s.repo.Get(ctx, id)
	var res *access.Resource
	switch {
	case err == nil:
		res = c.resource()
	case errors.Is(err, shared.ErrNotFound):
	default:
		return Collection{}, err
	}
	if err := access.Enforce(access.KindCollection, res, op, ac.PrincipalID()); err != nil {
		return Collection{}, err
	}
	return c, nil
}

// Create adds a collection owned by the caller.
func (s *Service) Create(ctx context.Context, in CreateInput) action.Result[Collection] {
	return action.Run(ctx, s.runner, action.Spec[*CreateInput, Collection]{
		Name: "collections.create",
		Auth: action.AuthRequired,
		Validate: func(_ context.Context, in *CreateInput) error {
			in.Name = strings.TrimSpace(in.Name)
			in.Description = strings.TrimSpace(in.Description)
			if err := validateName(in.Name); err != nil {
				return err
			}
			return validateDescription(in.Description)
		},
		Write: func(ctx context.Context, ac authctx.Context, in *CreateInput) (Collection, error) {
			return s.repo.Insert(ctx, ac.PrincipalID(), *in)
		},
		Invalidate: func(ac authctx.Context, _ *CreateInput, out Collection) []invalidate.Path {
			return invalidate.ForCollection(ac.Principal.Username, out.ID)
		},
		FailureMessage: "Failed to create collection",
	}, &in)
}

// Update changes name, description or visibility of the caller's collection.
func (s *Service) Update(ctx context.Context, in UpdateInput) action.Result[Collection] {
	return action.Run(ctx, s.runner, action.Spec[*UpdateInput, Collection]{
		Name: "collections.update",
		Auth: action.AuthRequired,
		Validate: func(_ context.Context, in *UpdateInput) error {
			if in.Name != nil {
				name := strings.TrimSpace(*in.Name)
				if err := validateName(name); err != nil {
					return err
				}
				in.Name = &name
			}
			if in.Description != nil {
				desc := strings.TrimSpace(*in.Description)
				if err := validateDescription(desc); err != nil {
					return err
				}
				in.Description = &desc
			}
			return nil
		},
		Authorize: func(ctx context.Context, ac authctx.Context, in *UpdateInput) error {
			c, err := s.load(ctx, ac, in.ID, access.OpEdit)
			if err != nil {
				return err
			}
			in.owner = c.Username
			return nil
		},
		Write: func(ctx context.Context, _ authctx.Context, in *UpdateInput) (Collection, error) {
			return s.repo.Update(ctx, *in)
		},
		Invalidate: func(_ authctx.Context, in *UpdateInput, _ Collection) []invalidate.Path {
			return invalidate.ForCollection(in.owner, in.ID)
		},
		FailureMessage: "Failed to update collection",
	}, &in)
}

// Delete removes the caller's collection.
func (s *Service) Delete(ctx context.Context, id string) action.Result[struct{}] {
	return action.Run(ctx, s.runner, action.Spec[*collectionRef, struct{}]{
		Name: "collections.delete",
		Auth: action.AuthRequired,
		Authorize: func(ctx context.Context, ac authctx.Context, in *collectionRef) error {
			c, err := s.load(ctx, ac, in.ID, access.OpDelete)
			if err != nil {
				return err
			}
			in.owner = c.Username
			return nil
		},
		Write: func(ctx context.Context, _ authctx.Context, in *collectionRef) (struct{}, error) {
			return struct{}{}, s.repo.Delete(ctx, in.ID)
		},
		Invalidate: func(_ authctx.Context, in *collectionRef, _ struct{}) []invalidate.Path {
			return invalidate.ForCollection(in.owner, in.ID)
		},
		FailureMessage: "Failed to delete collection",
	}, &collectionRef{ID: id})
}

func (s *Service) membershipSpec(name, failure string, write func(context.Context, string, *membershipInput) (Membership, error)) action.Spec[*membershipInput, Membership] {
	return action.Spec[*membershipInput, Membership]{
		Name: name,
		Auth: action.AuthRequired,
		Authorize: func(ctx context.Context, ac authctx.Context, in *membershipInput) error {
			c, err := s.load(ctx, ac, in.CollectionID, access.OpEdit)
			if err != nil {
				return err
			}
			in.owner = c.Username
			return nil
		},
		Write: func(ctx context.Context, ac authctx.Context, in *membershipInput) (Membership, error) {
			return write(ctx, ac.PrincipalID(), in)
		},
		Invalidate: func(_ authctx.Context, in *membershipInput, _ Membership) []invalidate.Path {
			return invalidate.ForCollection(in.owner, in.CollectionID)
		},
		FailureMessage:  failure,
		ConflictMessage: "Game already in collection",
	}
}

// AddGame puts gameID into the caller's collection.
func (s *Service) AddGame(ctx context.Context, collectionID string, gameID int64) action.Result[Membership] {
	spec := s.membershipSpec("collections.add_game", "Failed to add game", func(ctx context.Context, userID string, in *membershipInput) (Membership, error) {
		if err := s.repo.AddGame(ctx, in.CollectionID, in.GameID, userID); err != nil {
			return Membership{}, err
		}
		return Membership{CollectionID: in.CollectionID, GameID: in.GameID, InCollection: true}, nil
	})
	return action.Run(ctx, s.runner, spec, &membershipInput{CollectionID: collectionID, GameID: gameID})
}

// RemoveGame takes gameID out of the caller's collection.
func (s *Service) RemoveGame(ctx context.Context, collectionID string, gameID int64) action.Result[Membership] {
	spec := s.membershipSpec("collections.remove_game", "Failed to remove game", func(ctx context.Context, userID string, in *membershipInput) (Membership, error) {
		if err := s.repo.RemoveGame(ctx, in.CollectionID, in.GameID, userID); err != nil {
			return Membership{}, err
		}
		return Membership{CollectionID: in.CollectionID, GameID: in.GameID}, nil
	})
	return action.Run(ctx, s.runner, spec, &membershipInput{CollectionID: collectionID, GameID: gameID})
}

// ToggleGame flips membership of gameID in the caller's collection.
func (s *Service) ToggleGame(ctx context.Context, collectionID string, gameID int64) action.Result[Membership] {
	spec := s.membershipSpec("collections.toggle_game", "Failed to update collection", func(ctx context.Context, userID string, in *membershipInput) (Membership, error) {
		member, err := s.repo.ToggleGame(ctx, in.CollectionID, in.GameID, userID)
		if err != nil {
			return Membership{}, err
		}
		return Membership{CollectionID: in.CollectionID, GameID: in.GameID, InCollection: member}, nil
	})
	return action.Run(ctx, s.runner, spec, &membershipInput{CollectionID: collectionID, GameID: gameID})
}

// Get loads a collection visible to the caller.
func (s *Service) Get(ctx context.Context, id string) action.Result[Collection] {
	return action.RunQuery(ctx, s.runner, action.Query[collectionRef, Collection]{
		Name: "collections.get",
		Auth: action.AuthOptional,
		Read: func(ctx context.Context, ac authctx.Context, in collectionRef) (Collection, error) {
			return s.load(ctx, ac, in.ID, access.OpView)
		},
		FailureMessage: "Failed to get collection",
	}, collectionRef{ID: id})
}

// ListForUser lists userID's collections, or the caller's when userID is
// empty. Only the owner sees private collections.
func (s *Service) ListForUser(ctx context.Context, userID string, includeSystem bool) action.Result[[]Collection] {
	return action.RunQuery(ctx, s.runner, action.Query[listInput, []Collection]{
		Name: "collections.list",
		Auth: action.AuthOptional,
		Read: func(ctx context.Context, ac authctx.Context, in listInput) ([]Collection, error) {
			target := in.UserID
			if target == "" {
				if !ac.Authenticated {
					return nil, shared.Unauthenticated("Authentication required.")
				}
				target = ac.PrincipalID()
			}
			own := ac.Authenticated && ac.PrincipalID() == target
			return s.repo.ListForUser(ctx, target, own, in.IncludeSystem)
		},
		FailureMessage: "Failed to get collections",
	}, listInput{UserID: userID, IncludeSystem: includeSystem})
}

// Games pages through a visible collection's games.
func (s *Service) Games(ctx context.Context, id string, page, size int) action.Result[GamesPage] {
	page, size = shared.ClampPage(page, size)
	return action.RunQuery(ctx, s.runner, action.Query[collectionRef, GamesPage]{
		Name: "collections.games",
		Auth: action.AuthOptional,
		Read: func(ctx context.Context, ac authctx.Context, in collectionRef) (GamesPage, error) {
			c, err := s.load(ctx, ac, in.ID, access.OpView)
			if err != nil {
				return GamesPage{}, err
			}
			return s.gamesPage(ctx, c, page, size)
		},
		FailureMessage: "Failed to get collection games",
	}, collectionRef{ID: id})
}

func (s *Service) gamesPage(ctx context.Context, c Collection, page, size int) (GamesPage, error) {
	offset, limit := shared.Offset(page, size)
	list, total, err := s.repo.Games(ctx, c.ID, offset, limit)
	if err != nil {
		return GamesPage{}, err
	}
	return GamesPage{Collection: c, Games: list, Pagination: shared.NewPagination(page, size, total)}, nil
}

type containsInput struct {
	CollectionID string `json:"collection_id" validate:"required,uuid"`
	GameID       int64  `json:"game_id" validate:"required,gt=0"`
}

// Contains reports whether a visible collection holds gameID.
func (s *Service) Contains(ctx context.Context, collectionID string, gameID int64) action.Result[bool] {
	return action.RunQuery(ctx, s.runner, action.Query[containsInput, bool]{
		Name: "collections.contains",
		Auth: action.AuthOptional,
		Read: func(ctx context.Context, ac authctx.Context, in containsInput) (bool, error) {
			if _, err := s.load(ctx, ac, in.CollectionID, access.OpView); err != nil {
				return false, err
			}
			return s.repo.Contains(ctx, in.CollectionID, in.GameID)
		},
		FailureMessage: "Failed to check game",
	}, containsInput{CollectionID: collectionID, GameID: gameID})
}

// ForGame lists the caller's own collections with those holding gameID.
// Anonymous callers get an empty result.
func (s *Service) ForGame(ctx context.Context, gameID int64) action.Result[GameMembership] {
	return action.RunQuery(ctx, s.runner, action.Query[int64, GameMembership]{
		Name: "collections.for_game",
		Auth: action.AuthOptional,
		Read: func(ctx context.Context, ac authctx.Context, gameID int64) (GameMembership, error) {
			if !ac.Authenticated {
				return GameMembership{Collections: []Collection{}, Containing: []string{}}, nil
			}
			return s.repo.ForGame(ctx, ac.PrincipalID(), gameID)
		},
		FailureMessage: "Failed to get collections",
	}, gameID)
}

// Index pages through public user collections.
func (s *Service) Index(ctx context.Context, page, size int) (IndexPage, error) {
	page, size = shared.ClampPage(page, size)
	offset, limit := shared.Offset(page, size)
	list, total, err := s.repo.PublicIndex(ctx, offset, limit)
	if err != nil {
		return IndexPage{}, err
	}
	return IndexPage{Collections: list, Pagination: shared.NewPagination(page, size, total)}, nil
}
