package reviews

import (
	"context"
	"errors"
	"strings"

	"github.com/gramy/gramy/internal/access"
	"github.com/gramy/gramy/internal/action"
	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/invalidate"
	"github.com/gramy/gramy/internal/shared"
)

// Service implements review actions and queries.
type Service struct {
	repo   Repository
	runner *action.Runner
}

// NewService constructs a Service.
func NewService(repo Repository, runner *action.Runner) *Service {
	return &Service{repo: repo, runner: runner}
}

// Authenticate reports whether the caller may write reviews.
func (s *Service) Authenticate(ctx context.Context) action.Result[struct{}] {
	return s.runner.Authenticate(ctx)
}

// guard loads a review and enforces op for the caller. Reviews are public,
// so a non-owner edit is "Access denied" rather than not found.
func (s *Service) guard(ctx context.Context, ac authctx.Context, reviewID string, op access.Operation) (guardRow, error) {
	row, err := s.repo.Guard(ctx, reviewID)
	var res *access.Resource
	switch {
	case err == nil:
		res = &access.Resource{Kind: access.KindReview, ID: reviewID, OwnerID: row.UserID, Public: true}
	case errors.Is(err, shared.ErrNotFound):
	default:
		return guardRow{}, err
	}
	if err := access.Enforce(access.KindReview, res, op, ac.PrincipalID()); err != nil {
		return guardRow{}, err
	}
	return row, nil
}

// Submit creates the caller's review of a game or updates it when ReviewID is set.
func (s *Service) Submit(ctx context.Context, in SubmitInput) action.Result[Review] {
	return action.Run(ctx, s.runner, action.Spec[*SubmitInput, Review]{
		Name: "reviews.submit",
		Auth: action.AuthRequired,
		Validate: func(_ context.Context, in *SubmitInput) error {
			in.Text = strings.TrimSpace(in.Text)
			in.gameID = in.GameID
			return nil
		},
		Authorize: func(ctx context.Context, ac authctx.Context, in *SubmitInput) error {
			if in.ReviewID == "" {
				return nil
			}
			row, err := s.guard(ctx, ac, in.ReviewID, access.OpEdit)
			if err != nil {
				return err
			}
			in.gameID = row.GameID
			return nil
		},
		Write: func(ctx context.Context, ac authctx.Context, in *SubmitInput) (Review, error) {
			if in.ReviewID != "" {
				return s.repo.Update(ctx, in.ReviewID, *in)
			}
			return s.repo.Insert(ctx, ac.PrincipalID(), *in)
		},
		Invalidate: func(ac authctx.Context, in *SubmitInput, _ Review) []invalidate.Path {
			return invalidate.ForGame(ac.Principal.Username, in.gameID)
		},
		FailureMessage:  "Failed to submit review",
		ConflictMessage: "You have already reviewed this game",
	}, &in)
}

// Delete removes one of the caller's reviews.
func (s *Service) Delete(ctx context.Context, reviewID string) action.Result[struct{}] {
	return action.Run(ctx, s.runner, action.Spec[*reviewRef, struct{}]{
		Name: "reviews.delete",
		Auth: action.AuthRequired,
		Authorize: func(ctx context.Context, ac authctx.Context, in *reviewRef) error {
			row, err := s.guard(ctx, ac, in.ReviewID, access.OpDelete)
			if err != nil {
				return err
			}
			in.gameID = row.GameID
			return nil
		},
		Write: func(ctx context.Context, _ authctx.Context, in *reviewRef) (struct{}, error) {
			return struct{}{}, s.repo.Delete(ctx, in.ReviewID)
		},
		Invalidate: func(ac authctx.Context, in *reviewRef, _ struct{}) []invalidate.Path {
			return invalidate.ForGame(ac.Principal.Username, in.gameID)
		},
		FailureMessage: "Failed to delete review",
	}, &reviewRef{ReviewID: reviewID})
}

// ToggleLike likes or unlikes a review for the caller.
func (s *Service) ToggleLike(ctx context.Context, reviewID string) action.Result[LikeState] {
	return action.Run(ctx, s.runner, action.Spec[*reviewRef, LikeState]{
		Name: "reviews.toggle_like",
		Auth: action.AuthRequired,
		Authorize: func(ctx context.Context, ac authctx.Context, in *reviewRef) error {
			row, err := s.guard(ctx, ac, in.ReviewID, access.OpView)
			if err != nil {
				return err
			}
			in.gameID = row.GameID
			in.author = row.AuthorUsername
			return nil
		},
		Write: func(ctx context.Context, ac authctx.Context, in *reviewRef) (LikeState, error) {
			return s.repo.ToggleLike(ctx, in.ReviewID, ac.PrincipalID())
		},
		// The like count also shows on the author's profile.
		Invalidate: func(_ authctx.Context, in *reviewRef, _ LikeState) []invalidate.Path {
			return invalidate.ForGame(in.author, in.gameID)
		},
		FailureMessage: "Failed to toggle like",
	}, &reviewRef{ReviewID: reviewID})
}

type gameReviewsInput struct {
	GameID int64 `json:"game_id" validate:"required,gt=0"`
	Sort   Sort  `json:"sort" validate:"oneof=created_at likes"`
	Page   int
	Size   int
}

// GameReviews pages through a game's reviews with the caller's liked flags.
func (s *Service) GameReviews(ctx context.Context, gameID int64, page, size int, sort Sort) action.Result[Page] {
	page, size = shared.ClampPage(page, size)
	return action.RunQuery(ctx, s.runner, action.Query[gameReviewsInput, Page]{
		Name: "reviews.game_reviews",
		Auth: action.AuthOptional,
		Read: func(ctx context.Context, ac authctx.Context, in gameReviewsInput) (Page, error) {
			offset, limit := shared.Offset(in.Page, in.Size)
			list, total, err := s.repo.GameReviews(ctx, in.GameID, in.Sort, offset, limit)
			if err != nil {
				return Page{}, err
			}
			if ac.Authenticated && len(list) > 0 {
				ids := make([]string, len(list))
				for i, rv := range list {
					ids[i] = rv.ID
				}
				liked, err := s.repo.LikedBy(ctx, ac.PrincipalID(), ids)
				if err != nil {
					return Page{}, err
				}
				for i := range list {
					list[i].Liked = liked[list[i].ID]
				}
			}
			return Page{Reviews: list, Sort: in.Sort, Pagination: shared.NewPagination(in.Page, in.Size, total)}, nil
		},
		FailureMessage: "Failed to load reviews",
	}, gameReviewsInput{GameID: gameID, Sort: ParseSort(string(sort)), Page: page, Size: size})
}

// ViewerReview returns the caller's review of gameID, nil when there is none.
func (s *Service) ViewerReview(ctx context.Context, gameID int64) action.Result[*Review] {
	return action.RunQuery(ctx, s.runner, action.Query[int64, *Review]{
		Name: "reviews.viewer_review",
		Auth: action.AuthOptional,
		Read: func(ctx context.Context, ac authctx.Context, gameID int64) (*Review, error) {
			if !ac.Authenticated {
				return nil, nil
			}
			rv, err := s.repo.UserReview(ctx, ac.PrincipalID(), gameID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return nil, nil
				}
				return nil, err
			}
			return &rv, nil
		},
	}, gameID)
}

// AverageScore returns the mean rating of gameID.
func (s *Service) AverageScore(ctx context.Context, gameID int64) (Score, error) {
	return s.repo.AverageScore(ctx, gameID)
}

// UserReviews pages through a user's reviews, newest first.
func (s *Service) UserReviews(ctx context.Context, userID string, page, size int) (Page, error) {
	page, size = shared.ClampPage(page, size)
	offset, limit := shared.Offset(page, size)
	list, total, err := s.repo.UserReviews(ctx, userID, offset, limit)
	if err != nil {
		return Page{}, err
	}
	return Page{Reviews: list, Sort: SortCreated, Pagination: shared.NewPagination(page, size, total)}, nil
}
