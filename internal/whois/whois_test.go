package whois

import (
	"context"
	"errors"
	"testing"

	"github.com/AMOryC91/anonym/internal/db"
	apperrors "github.com/AMOryC91/anonym/internal/errors"
)

type fakeGameStore struct {
	games  map[int64]*db.WhoisGame
	users  map[int64]*db.User
	nextID int64
}

func newFakeGameStore() *fakeGameStore {
	return &fakeGameStore{games: map[int64]*db.WhoisGame{}, users: map[int64]*db.User{}}
}

func (f *fakeGameStore) CreateWhoisGame(_ context.Context, creatorID int64, token string) (int64, error) {
	f.nextID++
	f.games[f.nextID] = &db.WhoisGame{
		ID: f.nextID, JoinToken: token, CreatorID: creatorID, Status: db.GameWaiting,
	}
	return f.nextID, nil
}

func (f *fakeGameStore) GetWhoisGame(_ context.Context, gameID int64) (*db.WhoisGame, error) {
	g, ok := f.games[gameID]
	if !ok {
		return nil, db.ErrNotFound
	}
	clone := *g
	return &clone, nil
}

func (f *fakeGameStore) GetWhoisGameByToken(_ context.Context, token string) (*db.WhoisGame, error) {
	for _, g := range f.games {
		if g.JoinToken == token {
			clone := *g
			return &clone, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeGameStore) GetWhoisGameByCreator(_ context.Context, creatorID int64, status db.GameStatus) (*db.WhoisGame, error) {
	for _, g := range f.games {
		if g.CreatorID == creatorID && g.Status == status {
			clone := *g
			return &clone, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeGameStore) GetWhoisGameByOpponent(_ context.Context, opponentID int64, status db.GameStatus) (*db.WhoisGame, error) {
	for _, g := range f.games {
		if g.OpponentID == opponentID && g.Status == status {
			clone := *g
			return &clone, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeGameStore) JoinWhoisGame(_ context.Context, gameID, opponentID int64) (bool, error) {
	g, ok := f.games[gameID]
	if !ok || g.Status != db.GameWaiting || g.CreatorID == opponentID {
		return false, nil
	}
	g.OpponentID = opponentID
	g.Status = db.GameActive
	g.QuestionsAsked = 0
	return true, nil
}

func (f *fakeGameStore) IncrementQuestionsAsked(_ context.Context, gameID int64, budget int) (bool, error) {
	g, ok := f.games[gameID]
	if !ok || g.Status != db.GameActive || g.QuestionsAsked >= budget {
		return false, nil
	}
	g.QuestionsAsked++
	return true, nil
}

func (f *fakeGameStore) CompleteWhoisGame(_ context.Context, gameID, winnerID int64) (bool, error) {
	g, ok := f.games[gameID]
	if !ok || g.Status != db.GameActive {
		return false, nil
	}
	g.Status = db.GameCompleted
	g.WinnerID = winnerID
	return true, nil
}

func (f *fakeGameStore) GetUser(_ context.Context, userID int64) (*db.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

func activeGame(t *testing.T, store *fakeGameStore, svc *Service) *db.WhoisGame {
	t.Helper()
	ctx := context.Background()
	store.users[2] = &db.User{ID: 2, Username: "Hidden_One", FullName: "Мария Иванова"}
	game, err := svc.Create(ctx, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	game, err = svc.Join(ctx, game.JoinToken, 2)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	return game
}

func TestCreateDeduplicatesWaitingGame(t *testing.T) {
	t.Parallel()

	store := newFakeGameStore()
	svc := NewService(store)
	ctx := context.Background()

	first, err := svc.Create(ctx, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Create(ctx, 1)
	if !errors.Is(err, apperrors.ErrPolicyViolation) {
		t.Fatalf("second create must report the open game, got %v", err)
	}
	if second == nil || second.JoinToken != first.JoinToken {
		t.Fatal("the existing game must be returned for re-sharing")
	}
}

func TestJoinGuards(t *testing.T) {
	t.Parallel()

	store := newFakeGameStore()
	svc := NewService(store)
	ctx := context.Background()

	game, _ := svc.Create(ctx, 1)
	if _, err := svc.Join(ctx, "no-such-token", 2); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("unknown token: %v", err)
	}
	if _, err := svc.Join(ctx, game.JoinToken, 1); !errors.Is(err, apperrors.ErrPolicyViolation) {
		t.Fatalf("creator self-join must be a policy violation, got %v", err)
	}
	joined, err := svc.Join(ctx, game.JoinToken, 2)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.Status != db.GameActive || joined.OpponentID != 2 {
		t.Fatalf("unexpected game %+v", joined)
	}
	if _, err := svc.Join(ctx, game.JoinToken, 3); !errors.Is(err, apperrors.ErrIllegalTransition) {
		t.Fatalf("second joiner must lose the race, got %v", err)
	}
}

func TestQuestionBudget(t *testing.T) {
	t.Parallel()

	store := newFakeGameStore()
	svc := NewService(store)
	ctx := context.Background()
	game := activeGame(t, store, svc)

	if _, err := svc.AskQuestion(ctx, game.ID, 2, "am I tall?"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("opponent asking must be unauthorized, got %v", err)
	}
	if _, err := svc.AskQuestion(ctx, game.ID, 1, "   "); !errors.Is(err, apperrors.ErrPolicyViolation) {
		t.Fatalf("blank question must be rejected, got %v", err)
	}
	for i := 0; i < QuestionBudget; i++ {
		if _, err := svc.AskQuestion(ctx, game.ID, 1, "question"); err != nil {
			t.Fatalf("question %d: %v", i+1, err)
		}
	}
	if _, err := svc.AskQuestion(ctx, game.ID, 1, "one more"); !errors.Is(err, apperrors.ErrIllegalTransition) {
		t.Fatalf("fourth question must be rejected, got %v", err)
	}
}

func TestWrongGuessWithQuestionsLeftStaysActive(t *testing.T) {
	t.Parallel()

	store := newFakeGameStore()
	svc := NewService(store)
	ctx := context.Background()
	game := activeGame(t, store, svc)

	svc.AskQuestion(ctx, game.ID, 1, "q1")
	svc.AskQuestion(ctx, game.ID, 1, "q2")

	result, err := svc.Guess(ctx, game.ID, 1, "wrong person")
	if err != nil {
		t.Fatalf("guess: %v", err)
	}
	if result.Correct || result.Completed {
		t.Fatalf("miss with budget left must keep the game running: %+v", result)
	}
	if store.games[game.ID].Status != db.GameActive {
		t.Fatal("game must stay active")
	}
}

func TestWrongGuessAfterBudgetHandsWinToOpponent(t *testing.T) {
	t.Parallel()

	store := newFakeGameStore()
	svc := NewService(store)
	ctx := context.Background()
	game := activeGame(t, store, svc)

	for i := 0; i < QuestionBudget; i++ {
		svc.AskQuestion(ctx, game.ID, 1, "q")
	}
	result, err := svc.Guess(ctx, game.ID, 1, "still wrong")
	if err != nil {
		t.Fatalf("guess: %v", err)
	}
	if result.Correct || !result.Completed || result.WinnerID != 2 {
		t.Fatalf("exhausted budget miss must complete for the opponent: %+v", result)
	}
}

func TestCorrectGuessVariants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		guess string
	}{
		{"username exact", "hidden_one"},
		{"username with at", "@Hidden_One"},
		{"full name exact", "мария иванова"},
		{"full name substring", "Мария"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeGameStore()
			svc := NewService(store)
			ctx := context.Background()
			game := activeGame(t, store, svc)

			result, err := svc.Guess(ctx, game.ID, 1, tc.guess)
			if err != nil {
				t.Fatalf("guess: %v", err)
			}
			if !result.Correct || !result.Completed || result.WinnerID != 1 {
				t.Fatalf("guess %q should win for the creator: %+v", tc.guess, result)
			}
		})
	}
}

func TestGuessOnCompletedGameIllegal(t *testing.T) {
	t.Parallel()

	store := newFakeGameStore()
	svc := NewService(store)
	ctx := context.Background()
	game := activeGame(t, store, svc)

	if _, err := svc.Guess(ctx, game.ID, 1, "hidden_one"); err != nil {
		t.Fatalf("winning guess: %v", err)
	}
	if _, err := svc.Guess(ctx, game.ID, 1, "hidden_one"); !errors.Is(err, apperrors.ErrIllegalTransition) {
		t.Fatalf("completion must be terminal, got %v", err)
	}
}

func TestForfeit(t *testing.T) {
	t.Parallel()

	store := newFakeGameStore()
	svc := NewService(store)
	ctx := context.Background()
	game := activeGame(t, store, svc)

	if _, err := svc.Forfeit(ctx, game.ID, 99); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("stranger forfeit must be unauthorized, got %v", err)
	}
	result, err := svc.Forfeit(ctx, game.ID, 1)
	if err != nil {
		t.Fatalf("forfeit: %v", err)
	}
	if result.WinnerID != 2 {
		t.Fatalf("creator forfeit must hand the win to the opponent, got %d", result.WinnerID)
	}
	if _, err := svc.Forfeit(ctx, game.ID, 2); !errors.Is(err, apperrors.ErrIllegalTransition) {
		t.Fatalf("double forfeit must be illegal, got %v", err)
	}
}

func TestAnswerRouting(t *testing.T) {
	t.Parallel()

	store := newFakeGameStore()
	svc := NewService(store)
	ctx := context.Background()
	game := activeGame(t, store, svc)

	if _, err := svc.Answer(ctx, game.ID, 1); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("creator cannot answer, got %v", err)
	}
	if _, err := svc.Answer(ctx, game.ID, 2); err != nil {
		t.Fatalf("opponent answer: %v", err)
	}

	found, isCreator, err := svc.ActiveGameFor(ctx, 2)
	if err != nil {
		t.Fatalf("active game for: %v", err)
	}
	if found.ID != game.ID || isCreator {
		t.Fatalf("routing resolved %+v creator=%v", found, isCreator)
	}
}
